package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/hostgate/internal/domain"
	"github.com/hpungsan/hostgate/internal/errors"
	"github.com/hpungsan/hostgate/internal/intercept"
	"github.com/hpungsan/hostgate/internal/mcp"
	"github.com/hpungsan/hostgate/internal/ops"
	"github.com/hpungsan/hostgate/internal/query"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(deps mcp.Deps) *cli.App {
	app := &cli.App{
		Name:    "hostgate",
		Usage:   "Per-host link routing rules",
		Version: Version,
		Commands: []*cli.Command{
			folderCmd(deps),
			ruleCmd(deps),
			interceptCmd(deps),
			recordCmd(deps),
			historyCmd(deps),
			usageCmd(deps),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// folderCmd groups the folder commands.
func folderCmd(deps mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "folder",
		Usage: "Manage bookmark and block folders",
		Subcommands: []*cli.Command{
			{
				Name:  "create",
				Usage: "Create a folder",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Required: true, Usage: "Folder name"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Required: true, Usage: "bookmark|block"},
					&cli.Int64Flag{Name: "parent", Aliases: []string{"p"}, Usage: "Parent folder id (omit for a root)"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.CreateFolder(c.Context, deps.Store, ops.CreateFolderInput{
						Name:           c.String("name"),
						Type:           c.String("type"),
						ParentFolderID: optionalInt64(c, "parent"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "update",
				Usage:     "Rename, retype or move a folder",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "New name (defaults to current)"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "New type (defaults to current)"},
					&cli.Int64Flag{Name: "parent", Aliases: []string{"p"}, Usage: "New parent folder id"},
					&cli.BoolFlag{Name: "root", Usage: "Make the folder a root"},
				},
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					current, err := ops.GetFolder(c.Context, deps.Store, ops.GetFolderInput{ID: id})
					if err != nil {
						return outputError(err)
					}

					input := ops.UpdateFolderInput{
						ID:             id,
						Name:           current.Name,
						Type:           string(current.Type),
						ParentFolderID: current.ParentFolderID,
					}
					if c.IsSet("name") {
						input.Name = c.String("name")
					}
					if c.IsSet("type") {
						input.Type = c.String("type")
					}
					switch {
					case c.Bool("root") && c.IsSet("parent"):
						return outputError(errors.NewValidation("--root and --parent are mutually exclusive"))
					case c.Bool("root"):
						input.ParentFolderID = nil
					case c.IsSet("parent"):
						input.ParentFolderID = optionalInt64(c, "parent")
					}

					output, err := ops.UpdateFolder(c.Context, deps.Store, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a folder",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "cascade", Usage: "Delete descendants and detach their host rules"},
				},
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteFolder(c.Context, deps.Store, deps.Log, ops.DeleteFolderInput{
						ID:           id,
						ForceCascade: c.Bool("cascade"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show one folder",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.GetFolder(c.Context, deps.Store, ops.GetFolderInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List child folders of a parent, or root folders of a type",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "parent", Aliases: []string{"p"}, Usage: "Parent folder id"},
					&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "bookmark|block"},
					&cli.BoolFlag{Name: "all", Usage: "Every folder of the type, not just roots"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListFolders(c.Context, deps.Store, ops.ListFoldersInput{
						ParentFolderID: optionalInt64(c, "parent"),
						Type:           c.String("type"),
						All:            c.Bool("all"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "path",
				Usage:     "Show the path from the root down to a folder",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.GetFolderHierarchy(c.Context, deps.Store, ops.GetFolderHierarchyInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "detach",
				Usage:     "Move every host rule out of a folder",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.ClearFolderAssociation(c.Context, deps.Store, ops.ClearFolderAssociationInput{FolderID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// ruleCmd groups the host rule commands.
func ruleCmd(deps mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "rule",
		Usage: "Manage host rules",
		Subcommands: []*cli.Command{
			{
				Name:      "save",
				Usage:     "Create or replace the rule for a host",
				ArgsUsage: "<host>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Value: "none", Usage: "none|bookmarked|blocked"},
					&cli.Int64Flag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder id matching the status"},
					&cli.StringFlag{Name: "browser", Aliases: []string{"b"}, Usage: "Preferred browser package"},
					&cli.BoolFlag{Name: "prefer", Usage: "Open the host directly in the preferred browser"},
				},
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						return outputError(errors.NewValidation("host is required"))
					}
					input := ops.SaveHostRuleInput{
						Host:                c.Args().First(),
						Status:              c.String("status"),
						FolderID:            optionalInt64(c, "folder"),
						IsPreferenceEnabled: c.Bool("prefer"),
					}
					if c.IsSet("browser") {
						browser := c.String("browser")
						input.PreferredBrowserPackage = &browser
					}
					output, err := ops.SaveHostRule(c.Context, deps.Store, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show the rule for an id or host",
				ArgsUsage: "<id|host>",
				Action: func(c *cli.Context) error {
					ref, err := argRuleRef(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.GetHostRule(c.Context, deps.Store, ops.GetHostRuleInput{ID: ref.ID, Host: ref.Host})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete the rule for an id or host",
				ArgsUsage: "<id|host>",
				Action: func(c *cli.Context) error {
					ref, err := argRuleRef(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteHostRule(c.Context, deps.Store, ops.DeleteHostRuleInput{ID: ref.ID, Host: ref.Host})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "move",
				Usage:     "Move a rule into a folder, or out of any folder with --root",
				ArgsUsage: "<id>",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "folder", Aliases: []string{"f"}, Usage: "Destination folder id"},
					&cli.BoolFlag{Name: "root", Usage: "Clear the folder"},
				},
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					if c.IsSet("folder") == c.Bool("root") {
						return outputError(errors.NewValidation("exactly one of --folder or --root is required"))
					}
					output, err := ops.MoveHostRuleToFolder(c.Context, deps.Store, ops.MoveHostRuleInput{
						HostRuleID:          id,
						DestinationFolderID: optionalInt64(c, "folder"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "list",
				Usage: "List rules by status or folder",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Aliases: []string{"s"}, Usage: "none|bookmarked|blocked"},
					&cli.Int64Flag{Name: "folder", Aliases: []string{"f"}, Usage: "Folder id"},
					&cli.BoolFlag{Name: "root-only", Usage: "Only rules of the status outside any folder"},
				},
				Action: func(c *cli.Context) error {
					output, err := ops.ListHostRules(c.Context, deps.Store, ops.ListHostRulesInput{
						Status:   c.String("status"),
						FolderID: optionalInt64(c, "folder"),
						RootOnly: c.Bool("root-only"),
					})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "search",
				Usage: "Filter, sort and group rules",
				Flags: browseFlags(),
				Action: func(c *cli.Context) error {
					input, err := browseInput(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.SearchHostRules(c.Context, deps.Store, deps.Query, deps.Config, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// interceptCmd creates the intercept command.
func interceptCmd(deps mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:      "intercept",
		Usage:     "Decide what happens to a URI",
		ArgsUsage: "<uri>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "source", Value: "manual", Usage: "intent|clipboard|share|manual"},
		},
		Action: func(c *cli.Context) error {
			d := deps.Engine.Decide(c.Context, c.Args().First(), domain.ParseSource(c.String("source")))
			return outputJSON(mcp.InterceptResponse{Decision: d, Degraded: d.Fault != nil})
		},
	}
}

// recordCmd creates the record command.
func recordCmd(deps mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:      "record",
		Usage:     "Record what was done with a URI shown in the picker",
		ArgsUsage: "<uri>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "action", Aliases: []string{"a"}, Required: true,
				Usage: "opened_once|opened_always|bookmarked|blocked_by_user|dismissed"},
			&cli.StringFlag{Name: "browser", Aliases: []string{"b"}, Usage: "Chosen browser package"},
			&cli.StringFlag{Name: "source", Value: "manual", Usage: "intent|clipboard|share|manual"},
			&cli.StringFlag{Name: "host", Usage: "Host (defaults to the URI's host)"},
			&cli.Int64Flag{Name: "rule", Usage: "Associated host rule id"},
			&cli.StringFlag{Name: "event", Usage: "Event id of the decision being answered"},
		},
		Action: func(c *cli.Context) error {
			input := intercept.RecordInput{
				URI:    c.Args().First(),
				Host:   c.String("host"),
				Source: c.String("source"),
				Action: c.String("action"),
				RuleID: optionalInt64(c, "rule"),
			}
			if c.IsSet("browser") {
				browser := c.String("browser")
				input.ChosenBrowser = &browser
			}
			if c.IsSet("event") {
				event := c.String("event")
				input.EventID = &event
			}
			output, err := deps.Engine.RecordInteraction(c.Context, input)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(output)
		},
	}
}

// historyCmd groups the history commands.
func historyCmd(deps mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Browse and prune URI history",
		Subcommands: []*cli.Command{
			{
				Name:  "query",
				Usage: "Filter, sort and group history",
				Flags: browseFlags(),
				Action: func(c *cli.Context) error {
					input, err := browseInput(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.QueryHistory(c.Context, deps.Store, deps.Query, deps.Config, input)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "get",
				Usage:     "Show one history record",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.GetHistoryRecord(c.Context, deps.Store, id)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete one history record",
				ArgsUsage: "<id>",
				Action: func(c *cli.Context) error {
					id, err := argID(c)
					if err != nil {
						return outputError(err)
					}
					output, err := ops.DeleteHistoryRecord(c.Context, deps.Store, ops.DeleteHistoryRecordInput{ID: id})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "clear",
				Usage: "Delete all history",
				Action: func(c *cli.Context) error {
					output, err := ops.ClearHistory(c.Context, deps.Store)
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
			{
				Name:  "purge",
				Usage: "Delete history older than a number of days",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "older-than", Required: true, Usage: "Age in days, e.g. 30d"},
				},
				Action: func(c *cli.Context) error {
					days, err := parseDuration(c.String("older-than"))
					if err != nil {
						return outputError(errors.NewValidation(err.Error()))
					}
					output, err := ops.PurgeHistory(c.Context, deps.Store, ops.PurgeHistoryInput{OlderThanDays: days})
					if err != nil {
						return outputError(err)
					}
					return outputJSON(output)
				},
			},
		},
	}
}

// usageCmd creates the usage command.
func usageCmd(deps mcp.Deps) *cli.Command {
	return &cli.Command{
		Name:  "usage",
		Usage: "Show browser launch counts",
		Action: func(c *cli.Context) error {
			entries, err := deps.Counter.Stats(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(mcp.UsageStatsResponse{Browsers: entries})
		},
	}
}

// browseFlags are shared by the rule and history browsers.
func browseFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "Substring to match"},
		&cli.StringSliceFlag{Name: "filter", Aliases: []string{"f"}, Usage: "dimension=value, repeatable"},
		&cli.StringFlag{Name: "from", Usage: "Start date (YYYY-MM-DD, local time)"},
		&cli.StringFlag{Name: "to", Usage: "End date, inclusive (YYYY-MM-DD, local time)"},
		&cli.StringFlag{Name: "sort", Usage: "Sort field"},
		&cli.StringFlag{Name: "order", Usage: "asc|desc"},
		&cli.StringFlag{Name: "group-by", Aliases: []string{"g"}, Usage: "Group field"},
		&cli.StringFlag{Name: "group-order", Usage: "asc|desc"},
		&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Page size"},
		&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Items to skip"},
		&cli.BoolFlag{Name: "dates", Usage: "Include per-day counts"},
	}
}

// browseInput reads browseFlags into ops.BrowseInput.
func browseInput(c *cli.Context) (ops.BrowseInput, error) {
	sortDir, err := query.ParseDirection(c.String("order"))
	if err != nil {
		return ops.BrowseInput{}, errors.NewValidation(err.Error())
	}
	groupDir, err := query.ParseDirection(c.String("group-order"))
	if err != nil {
		return ops.BrowseInput{}, errors.NewValidation(err.Error())
	}
	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return ops.BrowseInput{}, errors.NewValidation(err.Error())
	}
	dates, err := parseDateRange(c.String("from"), c.String("to"), time.Local)
	if err != nil {
		return ops.BrowseInput{}, errors.NewValidation(err.Error())
	}

	return ops.BrowseInput{
		Spec: query.Spec{
			Search:    c.String("search"),
			Filters:   filters,
			DateRange: dates,
			SortField: c.String("sort"),
			SortDir:   sortDir,
			GroupBy:   c.String("group-by"),
			GroupDir:  groupDir,
		},
		Limit:             c.Int("limit"),
		Offset:            c.Int("offset"),
		IncludeDateCounts: c.Bool("dates"),
	}, nil
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	appErr := errors.Wrap(err)
	return cli.Exit(fmt.Sprintf("[%s] %s", appErr.Code, appErr.Message), 1)
}

// optionalInt64 returns the flag value, or nil when it was not given.
func optionalInt64(c *cli.Context, name string) *int64 {
	if !c.IsSet(name) {
		return nil
	}
	v := c.Int64(name)
	return &v
}

// argID parses the first positional argument as an id.
func argID(c *cli.Context) (int64, error) {
	if c.NArg() == 0 {
		return 0, errors.NewValidation("id is required")
	}
	id, err := strconv.ParseInt(c.Args().First(), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidation(fmt.Sprintf("invalid id %q", c.Args().First()))
	}
	return id, nil
}

// ruleRef is a raw rule id or host from the command line.
type ruleRef struct {
	ID   int64
	Host string
}

// argRuleRef reads a positional rule id or host.
func argRuleRef(c *cli.Context) (ruleRef, error) {
	if c.NArg() == 0 {
		return ruleRef{}, errors.NewValidation("id or host is required")
	}
	return parseRuleRef(c.Args().First()), nil
}

// parseRuleRef treats a numeric argument as an id and anything else as a host.
func parseRuleRef(arg string) ruleRef {
	arg = strings.TrimSpace(arg)
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return ruleRef{ID: id}
	}
	return ruleRef{Host: arg}
}

// parseFilters turns dimension=value pairs into a filter map.
func parseFilters(pairs []string) (map[query.Dimension][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[query.Dimension][]string)
	for _, pair := range pairs {
		dim, value, ok := strings.Cut(pair, "=")
		dim = strings.TrimSpace(dim)
		if !ok || dim == "" {
			return nil, fmt.Errorf("invalid filter %q (want dimension=value)", pair)
		}
		key := query.Dimension(strings.ToLower(dim))
		filters[key] = append(filters[key], strings.TrimSpace(value))
	}
	return filters, nil
}

// parseDateRange converts day bounds into an inclusive millisecond range.
// A missing bound is open.
func parseDateRange(from, to string, loc *time.Location) (*query.DateRange, error) {
	if from == "" && to == "" {
		return nil, nil
	}
	r := &query.DateRange{Start: 0, End: 1<<63 - 1}
	if from != "" {
		day, err := time.ParseInLocation("2006-01-02", from, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --from date %q", from)
		}
		r.Start = day.UnixMilli()
	}
	if to != "" {
		day, err := time.ParseInLocation("2006-01-02", to, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid --to date %q", to)
		}
		r.End = day.AddDate(0, 0, 1).UnixMilli() - 1
	}
	if r.Start > r.End {
		return nil, fmt.Errorf("--from is after --to")
	}
	return r, nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
