package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/keshon/npc-mind/internal/mind"
	"github.com/keshon/npc-mind/internal/session"
	"github.com/keshon/npc-mind/internal/storage"
)

var (
	turnTone    string
	pulseEvents []string
	pulseTone   string
	pulseMood   string
	retainCount int
)

// describeCmd prints the current state of an instance in words
var describeCmd = &cobra.Command{
	Use:   "describe <npc> <player>",
	Short: "Describe personality, mood and relationship of an instance",
	Args:  cobra.ExactArgs(2),
	RunE:  describeInstance,
}

var contextCmd = &cobra.Command{
	Use:   "context <npc> <player>",
	Short: "Print the prompt context the NPC speaks from",
	Args:  cobra.ExactArgs(2),
	RunE:  printContext,
}

var turnCmd = &cobra.Command{
	Use:   "turn <npc> <player> <text>...",
	Short: "Record a conversational turn from the player",
	Long: `Stores the turn as a short-term memory scored for salience, nudges the
mood by the tone of the turn and updates the relationship with the player.
The tone is classified from the text unless --tone is given.`,
	Args: cobra.MinimumNArgs(3),
	RunE: recordTurn,
}

var pulseCmd = &cobra.Command{
	Use:   "pulse <npc> <player>",
	Short: "Run the Daily Pulse cycle",
	Args:  cobra.ExactArgs(2),
	RunE:  runPulse,
}

var whisperCmd = &cobra.Command{
	Use:   "whisper <npc> <player>",
	Short: "Run the Weekly Whisper cycle",
	Args:  cobra.ExactArgs(2),
	RunE:  runWhisper,
}

var shiftCmd = &cobra.Command{
	Use:   "shift <npc> <player>",
	Short: "Run the Persona Shift cycle",
	Args:  cobra.ExactArgs(2),
	RunE:  runShift,
}

var historyCmd = &cobra.Command{
	Use:   "history <npc> <player>",
	Short: "List stored versions of an instance",
	Args:  cobra.ExactArgs(2),
	RunE:  listHistory,
}

var rollbackCmd = &cobra.Command{
	Use:   "rollback <npc> <player> <version>",
	Short: "Make an old version of an instance current again",
	Long:  `The chosen version is stored again as the newest one; history is kept.`,
	Args:  cobra.ExactArgs(3),
	RunE:  rollbackInstance,
}

func init() {
	turnCmd.Flags().StringVar(&turnTone, "tone", "", "Tone of the turn: positive, negative, aggressive or neutral")

	pulseCmd.Flags().StringSliceVar(&pulseEvents, "event", nil, "Notable event of the day (repeatable)")
	pulseCmd.Flags().StringVar(&pulseTone, "tone", "", "Overall tone of the day: positive, negative or neutral")
	pulseCmd.Flags().StringVar(&pulseMood, "mood", "", "Dominant mood of the day, in words")

	whisperCmd.Flags().IntVar(&retainCount, "retain", 0, "Short-term memories to keep (default from WEEKLY_RETAIN_COUNT)")
}

// endSession closes the pair's session when the command is done. A core anchor
// found tampered during the command is persisted restored here.
func endSession(ctx context.Context, svc *session.Service, npcID, playerID string) {
	err := svc.Registry().End(context.WithoutCancel(ctx), npcID, playerID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Warn("session end failed", zap.String("npc", npcID), zap.String("player", playerID), zap.Error(err))
	}
}

func describeInstance(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(false)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	def, inst, err := svc.Snapshot(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s) with %s\n\n", def.Name, def.ID, inst.PlayerID)
	fmt.Fprintln(out, mind.Describe(def.Personality, inst.Modifiers))
	fmt.Fprintf(out, "%s (%s)\n", mind.FeelingPhrase(inst.Mood), mind.Categorize(inst.Mood))
	r := inst.Relationship(inst.PlayerID)
	fmt.Fprintf(out, "Relationship: trust %s, familiarity %s, feeling %s, %d interactions\n",
		mind.RelationshipLevel(r.Trust), mind.RelationshipLevel(r.Familiarity), mind.SentimentLevel(r.Sentiment), r.Interactions)
	fmt.Fprintf(out, "Memories: %d short-term, %d long-term\n", len(inst.ShortTerm), len(inst.LongTerm))
	if inst.DailyPulse != nil {
		fmt.Fprintf(out, "Last takeaway (%s): %s\n", inst.DailyPulse.Timestamp.Format("2006-01-02"), inst.DailyPulse.Takeaway)
	}
	return nil
}

func printContext(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(false)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	text, err := svc.Context(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), text)
	fmt.Fprintf(cmd.OutOrStdout(), "\n(~%d tokens)\n", mind.EstimateTokens(text))
	return nil
}

func recordTurn(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(false)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	res, err := svc.RecordTurn(ctx, args[0], args[1], session.Turn{
		Content: strings.Join(args[2:], " "),
		Tone:    turnTone,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "tone %s, salience %.2f, mood %s, trust %s, %d evicted\n",
		res.Tone, res.Memory.Salience, mind.Categorize(res.Mood),
		mind.RelationshipLevel(res.Relationship.Trust), len(res.Evicted))
	return nil
}

func runPulse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(true)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	res, err := svc.DailyPulse(ctx, args[0], args[1], mind.DayContext{
		Events:       pulseEvents,
		DominantMood: pulseMood,
		Overall:      mind.ParseDayTone(pulseTone),
	})
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\n", res.Takeaway, mind.FeelingPhrase(res.Mood))
	return nil
}

func runWhisper(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(false)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	res, err := svc.WeeklyWhisper(ctx, args[0], args[1], retainCount)
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "retained %d, promoted %d, discarded %d, evicted %d\n",
		len(res.Retained), len(res.Promoted), len(res.Discarded), len(res.Evicted))
	return nil
}

func runShift(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(true)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	res, err := svc.PersonaShift(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	if !res.Success {
		return res.Err
	}
	out := cmd.OutOrStdout()
	for _, t := range mind.Traits {
		if d, ok := res.Proposal[t]; ok {
			fmt.Fprintf(out, "%-18s %+.2f (now %+.2f)\n", t, d, res.Modifiers[t])
		}
	}
	if len(res.Rejected) > 0 {
		fmt.Fprintf(out, "rejected: %s\n", strings.Join(res.Rejected, ", "))
	}
	return nil
}

func listHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	svc, err := newService(false)
	if err != nil {
		return err
	}
	versions, err := svc.History(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tSAVED")
	for _, v := range versions {
		fmt.Fprintf(w, "%d\t%s\n", v.Number, v.SavedAt.Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func rollbackInstance(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	version, err := strconv.Atoi(args[2])
	if err != nil || version < 1 {
		return fmt.Errorf("version must be a positive number, got %q", args[2])
	}
	svc, err := newService(false)
	if err != nil {
		return err
	}
	defer endSession(ctx, svc, args[0], args[1])
	_, v, err := svc.Rollback(ctx, args[0], args[1], version)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored version %d as version %d\n", version, v.Number)
	return nil
}
