package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/FrictionLog/internal/friction"
)

// sessionCommands builds the commands that talk to the backend. The shell
// builds a fresh set per line so flag values never leak between lines.
func sessionCommands(a *app) []*cobra.Command {
	return []*cobra.Command{
		newListCmd(a),
		newAddCmd(a),
		newUpdateCmd(a),
		newFixCmd(a),
		newDeleteCmd(a),
		newHitCmd(a),
		newStatusCmd(a),
		newDashboardCmd(a),
		newLimitCmd(a),
		newTrendCmd(a),
		newCategoriesCmd(a),
		newTopCmd(a),
	}
}

// --- item commands ---

func newListCmd(a *app) *cobra.Command {
	var status, category string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List friction items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter friction.Filter
			if status != "" {
				st, err := friction.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = st
			}
			if category != "" {
				cat, err := friction.ParseCategory(category)
				if err != nil {
					return err
				}
				filter.Category = cat
			}

			if err := a.session.LoadItems(cmd.Context(), filter); err != nil {
				return a.failure(err)
			}
			renderItems(a.out, a.session.Snapshot().Items)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (not_fixed, in_progress, fixed)")
	cmd.Flags().StringVar(&category, "category", "", "Filter by category (home, work, digital, health, other)")
	return cmd
}

func newAddCmd(a *app) *cobra.Command {
	var (
		description string
		level       int
		category    string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "add TITLE...",
		Short: "Add a friction item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := friction.ParseCategory(category)
			if err != nil {
				return err
			}
			req := friction.ItemCreate{
				Title:          strings.Join(args, " "),
				AnnoyanceLevel: level,
				Category:       cat,
			}
			if description != "" {
				req.Description = &description
			}
			if cmd.Flags().Changed("limit") {
				req.EncounterLimit = &limit
			}

			item, err := a.session.CreateItem(cmd.Context(), req)
			if err != nil {
				return a.failure(err)
			}
			a.report()
			renderItem(a.out, *item)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "Longer description")
	cmd.Flags().IntVarP(&level, "level", "l", 3, "Annoyance level 1-5")
	cmd.Flags().StringVar(&category, "category", string(friction.CategoryOther), "Category (home, work, digital, health, other)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Daily encounter limit for this item")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		title       string
		description string
		level       int
		category    string
		status      string
		limit       int
		clearLimit  bool
	)
	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Change fields of a friction item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			var u friction.ItemUpdate
			flags := cmd.Flags()
			if flags.Changed("title") {
				u.Title = &title
			}
			if flags.Changed("description") {
				u.Description = &description
			}
			if flags.Changed("level") {
				u.AnnoyanceLevel = &level
			}
			if flags.Changed("category") {
				cat, err := friction.ParseCategory(category)
				if err != nil {
					return err
				}
				u.Category = &cat
			}
			if flags.Changed("status") {
				st, err := friction.ParseStatus(status)
				if err != nil {
					return err
				}
				u.Status = &st
			}
			if flags.Changed("limit") {
				u.EncounterLimit = &limit
			}
			u.ClearEncounterLimit = clearLimit
			if u.IsEmpty() {
				return errors.New("nothing to update; pass at least one field flag")
			}

			item, err := a.session.UpdateItem(cmd.Context(), id, u)
			if err != nil {
				return a.failure(err)
			}
			a.report()
			renderItem(a.out, *item)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().IntVarP(&level, "level", "l", 0, "New annoyance level 1-5")
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&status, "status", "", "New status (not_fixed, in_progress, fixed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "New daily encounter limit")
	cmd.Flags().BoolVar(&clearLimit, "clear-limit", false, "Remove the daily encounter limit")
	cmd.MarkFlagsMutuallyExclusive("limit", "clear-limit")
	return cmd
}

func newFixCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fix ID",
		Short: "Mark a friction item as fixed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			fixed := friction.StatusFixed
			item, err := a.session.UpdateItem(cmd.Context(), id, friction.ItemUpdate{Status: &fixed})
			if err != nil {
				return a.failure(err)
			}
			a.report()
			renderItem(a.out, *item)
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a friction item and its history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := a.session.DeleteItem(cmd.Context(), id); err != nil {
				return a.failure(err)
			}
			a.report()
			return nil
		},
	}
}

func newHitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "hit ID",
		Aliases: []string{"encounter"},
		Short:   "Record one encounter of a friction item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, ok := a.session.Item(id); !ok {
				if _, err := a.session.LoadItem(ctx, id); err != nil {
					return a.failure(err)
				}
			}
			item, _, err := a.session.IncrementEncounter(ctx, id)
			if err != nil {
				return a.failure(err)
			}

			count := strconv.Itoa(item.EncounterCount)
			if item.EncounterLimit != nil {
				count += "/" + strconv.Itoa(*item.EncounterLimit)
			}
			fmt.Fprintf(a.out, "Encounter recorded: %s (%s today)\n", item.Title, count)
			a.report()
			return nil
		},
	}
}

// --- analytics commands ---

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend health and today's score",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !a.session.CheckHealth(ctx) {
				return a.failure(errors.New("backend is not healthy"))
			}
			fmt.Fprintf(a.out, "Backend: %s\n", a.cfg.Gateway.BaseURL)

			score, err := a.session.RefreshScore(ctx)
			if err != nil {
				return a.failure(err)
			}
			renderScore(a.out, *score)
			return nil
		},
	}
}

// newDashboardCmd loads every analytics view at once and draws what arrived,
// even when one of the reads failed.
func newDashboardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show score, trend, categories and top items together",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			err := a.session.LoadAllAnalytics(cmd.Context())
			snap := a.session.Snapshot()

			if snap.Score != nil {
				renderScore(a.out, *snap.Score)
			}
			if len(snap.Trend) > 0 {
				fmt.Fprintln(a.out, styles.Header.Render("Trend"))
				renderTrend(a.out, snap.Trend)
			}
			if snap.Breakdown != nil {
				fmt.Fprintln(a.out, styles.Header.Render("By category"))
				renderBreakdown(a.out, *snap.Breakdown)
			}
			fmt.Fprintln(a.out, styles.Header.Render("Most annoying"))
			renderRanked(a.out, snap.MostAnnoying)

			if err != nil {
				return a.failure(err)
			}
			return nil
		},
	}
}

func newLimitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "limit [N|clear]",
		Short: "Show, set or clear the global daily limit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 1 {
				var limit *int
				if args[0] != "clear" {
					n, err := strconv.Atoi(args[0])
					if err != nil {
						return fmt.Errorf("invalid limit %q", args[0])
					}
					limit = &n
				}
				if err := a.session.SetGlobalDailyLimit(ctx, limit); err != nil {
					return a.failure(err)
				}
				a.report()
			} else {
				limit, err := a.session.LoadGlobalLimit(ctx)
				if err != nil {
					return a.failure(err)
				}
				if limit == nil {
					fmt.Fprintln(a.out, "No daily limit set")
				} else {
					fmt.Fprintf(a.out, "Daily limit: %d\n", *limit)
				}
				if _, err := a.session.RefreshScore(ctx); err != nil {
					return a.failure(err)
				}
			}

			if score := a.session.Snapshot().Score; score != nil {
				renderScore(a.out, *score)
			}
			return nil
		},
	}
}

func newTrendCmd(a *app) *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show the daily score history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.LoadTrend(cmd.Context(), days); err != nil {
				return a.failure(err)
			}
			renderTrend(a.out, a.session.Snapshot().Trend)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Days of history (default from config)")
	return cmd
}

func newCategoriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Show today's score per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.LoadCategoryBreakdown(cmd.Context()); err != nil {
				return a.failure(err)
			}
			if b := a.session.Snapshot().Breakdown; b != nil {
				renderBreakdown(a.out, *b)
			}
			return nil
		},
	}
}

func newTopCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "top",
		Short: "Show the most annoying items today",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.session.LoadMostAnnoying(cmd.Context(), limit); err != nil {
				return a.failure(err)
			}
			renderRanked(a.out, a.session.Snapshot().MostAnnoying)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "How many items (default from config)")
	return cmd
}
