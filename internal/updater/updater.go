// Package updater revises the user profile from new interactions.
package updater

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tiktoken-go/tokenizer"

	"github.com/thebtf/recall/internal/privacy"
	"github.com/thebtf/recall/internal/profile"
	"github.com/thebtf/recall/pkg/models"
)

// Sentinel is the literal response meaning "no profile change needed".
// The sentinel protocol is what lets repeated updates converge instead
// of rewriting the profile forever.
const Sentinel = "NO_UPDATE_NEEDED"

// Invoker generates text from a model. Implemented by llmcli.Client.
type Invoker interface {
	Prompt(ctx context.Context, model, prompt string) (string, error)
}

// Updater applies model-generated profile revisions.
type Updater struct {
	store         *profile.Store
	invoker       Invoker
	modelOverride string // when set, wins over the record's model
	tokenBudget   int    // cap on interaction text embedded in the prompt
	codec         tokenizer.Codec
	logger        zerolog.Logger
}

// New creates an updater writing through store and invoking models via invoker.
func New(store *profile.Store, invoker Invoker, modelOverride string, tokenBudget int, logger zerolog.Logger) *Updater {
	// Codec load only fails for unknown encodings; nil codec falls
	// back to byte truncation.
	codec, _ := tokenizer.Get(tokenizer.Cl100kBase)
	return &Updater{
		store:         store,
		invoker:       invoker,
		modelOverride: modelOverride,
		tokenBudget:   tokenBudget,
		codec:         codec,
		logger:        logger.With().Str("component", "updater").Logger(),
	}
}

// Apply asks a model to revise the profile in light of rec and saves
// the result. It returns true only when the profile actually changed
// on disk. The model is the one from the record itself, so profile
// tone matches whatever the user was already talking to.
func (u *Updater) Apply(ctx context.Context, rec *models.InteractionRecord) (bool, error) {
	current, err := u.store.Load()
	if err != nil {
		return false, err
	}
	if profile.IsBlank(current) {
		current = profile.DefaultSkeleton
	}

	interaction := privacy.Clean(rec.Prompt)
	if interaction == "" {
		u.logger.Debug().Str("record_id", rec.ID).Msg("Nothing usable after privacy scrub")
		return false, nil
	}

	prompt := u.buildPrompt(current, interaction)

	model := rec.Model
	if u.modelOverride != "" {
		model = u.modelOverride
	}

	response, err := u.invoker.Prompt(ctx, model, prompt)
	if err != nil {
		return false, fmt.Errorf("invoke model %q: %w", model, err)
	}

	trimmed := strings.TrimSpace(response)
	if trimmed == "" || trimmed == Sentinel {
		u.logger.Debug().Str("record_id", rec.ID).Msg("No profile change needed")
		return false, nil
	}
	// Models sometimes echo the input profile back; treat that as no-op.
	if trimmed == strings.TrimSpace(current) {
		u.logger.Debug().Str("record_id", rec.ID).Msg("Model echoed current profile")
		return false, nil
	}

	if err := u.store.Save(trimmed + "\n"); err != nil {
		return false, err
	}
	u.logger.Info().Str("record_id", rec.ID).Str("model", model).Msg("Profile updated")
	return true, nil
}

// buildPrompt composes the update instruction around the current
// profile and the latest interaction prompt.
func (u *Updater) buildPrompt(current, interaction string) string {
	var sb strings.Builder
	sb.WriteString("You maintain a short markdown profile of a user, built from their prompts to a language model.\n\n")
	sb.WriteString("Current profile:\n")
	sb.WriteString("<profile>\n")
	sb.WriteString(current)
	if !strings.HasSuffix(current, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("</profile>\n\n")
	sb.WriteString("The user's latest prompt:\n")
	sb.WriteString("<interaction>\n")
	sb.WriteString(u.truncateTokens(interaction))
	sb.WriteString("\n</interaction>\n\n")
	sb.WriteString("If the interaction reveals nothing new about the user, respond with exactly:\n")
	sb.WriteString(Sentinel)
	sb.WriteString("\n\nOtherwise respond with the complete replacement profile, keeping the same sections ")
	sb.WriteString("(Personal Information, Interests, Current Projects, Preferences). ")
	sb.WriteString("Output only the sentinel or the profile, nothing else.")
	return sb.String()
}

// truncateTokens bounds s to the configured token budget so one huge
// prompt in the log cannot blow up the update call.
func (u *Updater) truncateTokens(s string) string {
	if u.tokenBudget <= 0 {
		return s
	}
	if u.codec == nil {
		// Rough fallback: ~4 bytes per token.
		if max := u.tokenBudget * 4; len(s) > max {
			return s[:max] + "... (truncated)"
		}
		return s
	}
	ids, _, err := u.codec.Encode(s)
	if err != nil || len(ids) <= u.tokenBudget {
		return s
	}
	head, err := u.codec.Decode(ids[:u.tokenBudget])
	if err != nil {
		return s
	}
	return head + "... (truncated)"
}
