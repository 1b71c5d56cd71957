package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"calctree/interfaces/invoke"
	"calctree/pkg/common"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	backend    string
	badgerPath string
	logLevel   string
	user       string
}

// opener returns a dispatcher and the function that releases it
type opener func(ctx context.Context, opts globalOptions) (*invoke.Dispatcher, func(), error)

// cli carries the state shared by every subcommand
type cli struct {
	out  io.Writer
	open opener
	opts globalOptions
}

// errActionFailed makes the process exit non-zero after the failure
// envelope has been printed.
type errActionFailed struct {
	code string
}

func (e errActionFailed) Error() string {
	return "action failed: " + e.code
}

func newRootCmd(out io.Writer, open opener) *cobra.Command {
	c := &cli{out: out, open: open}

	rootCmd := &cobra.Command{
		Use:           "treectl",
		Short:         "Inspect and edit calculation trees",
		Long:          "treectl drives the recalculation engine directly. Every command prints the JSON response envelope.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&c.opts.backend, "backend", "", "store backend: memory, badger or dynamodb (default $STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&c.opts.badgerPath, "badger-path", "", "badger data directory (default $BADGER_PATH)")
	rootCmd.PersistentFlags().StringVar(&c.opts.logLevel, "log-level", "", "log level (default $LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&c.opts.user, "user", os.Getenv("USER"), "identity recorded as createdBy")

	rootCmd.AddCommand(c.discussionCmd(), c.operationCmd(), c.invokeCmd())
	return rootCmd
}

func (c *cli) discussionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "discussion",
		Aliases: []string{"d"},
		Short:   "Manage discussions",
	}

	var title, start string
	var rootKind, rootOperand, rootTitle string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Open a discussion, optionally with its first operation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{
				"title":         title,
				"startingValue": start,
			}
			if rootKind != "" || rootOperand != "" || rootTitle != "" {
				payload["rootOperation"] = map[string]interface{}{
					"operationType": rootKind,
					"rightOperand":  rootOperand,
					"title":         rootTitle,
				}
			}
			return c.run(cmd.Context(), invoke.ActionCreateDiscussion, payload)
		},
	}
	createCmd.Flags().StringVar(&title, "title", "", "discussion title")
	createCmd.Flags().StringVar(&start, "start", "0", "starting value")
	createCmd.Flags().StringVar(&rootKind, "root-kind", "", "kind of the first operation")
	createCmd.Flags().StringVar(&rootOperand, "root-operand", "", "operand of the first operation")
	createCmd.Flags().StringVar(&rootTitle, "root-title", "", "title of the first operation")
	_ = createCmd.MarkFlagRequired("title")

	var search, createdBy string
	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List discussions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), invoke.ActionListDiscussions, map[string]interface{}{
				"search":    search,
				"createdBy": createdBy,
				"page":      page,
				"pageSize":  pageSize,
			})
		},
	}
	listCmd.Flags().StringVar(&search, "search", "", "case-insensitive title filter")
	listCmd.Flags().StringVar(&createdBy, "created-by", "", "only discussions opened by this user")
	listCmd.Flags().IntVar(&page, "page", 1, "page number")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (0 uses the default)")

	renameCmd := &cobra.Command{
		Use:   "rename DISCUSSION_ID TITLE",
		Short: "Rename a discussion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), invoke.ActionRenameDiscussion, map[string]interface{}{
				"discussionId": args[0],
				"title":        args[1],
			})
		},
	}

	cmd.AddCommand(
		createCmd,
		listCmd,
		renameCmd,
		c.byIDCmd("get DISCUSSION_ID", "Show a discussion", invoke.ActionGetDiscussion, "discussionId"),
		c.byIDCmd("end DISCUSSION_ID", "Close a discussion to further edits", invoke.ActionEndDiscussion, "discussionId"),
		c.byIDCmd("delete DISCUSSION_ID", "Delete a discussion and its operations", invoke.ActionDeleteDiscussion, "discussionId"),
		c.byIDCmd("tree DISCUSSION_ID", "Show the nested operation tree", invoke.ActionGetTree, "discussionId"),
		c.byIDCmd("summary DISCUSSION_ID", "Show the after-value of every root operation", invoke.ActionGetRootSummary, "discussionId"),
	)
	return cmd
}

func (c *cli) operationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "op",
		Aliases: []string{"operation"},
		Short:   "Manage operations",
	}

	var discussionID, parentID, kind, operand, title string
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Add an operation under a parent or as a new root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), invoke.ActionCreateOperation, map[string]interface{}{
				"discussionId":  discussionID,
				"parentId":      parentID,
				"operationType": kind,
				"rightOperand":  operand,
				"title":         title,
			})
		},
	}
	createCmd.Flags().StringVar(&discussionID, "discussion", "", "discussion for a root operation")
	createCmd.Flags().StringVar(&parentID, "parent", "", "parent operation")
	createCmd.Flags().StringVar(&kind, "kind", "", "ADD, SUBTRACT, MULTIPLY or DIVIDE")
	createCmd.Flags().StringVar(&operand, "operand", "", "right operand")
	createCmd.Flags().StringVar(&title, "title", "", "operation title")

	var newKind, newOperand, newTitle string
	updateCmd := &cobra.Command{
		Use:   "update OPERATION_ID",
		Short: "Edit an operation and recalculate its subtree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := map[string]interface{}{"operationId": args[0]}
			if cmd.Flags().Changed("kind") {
				payload["operationType"] = newKind
			}
			if cmd.Flags().Changed("operand") {
				payload["rightOperand"] = newOperand
			}
			if cmd.Flags().Changed("title") {
				payload["title"] = newTitle
			}
			return c.run(cmd.Context(), invoke.ActionUpdateOperation, payload)
		},
	}
	updateCmd.Flags().StringVar(&newKind, "kind", "", "new kind")
	updateCmd.Flags().StringVar(&newOperand, "operand", "", "new right operand")
	updateCmd.Flags().StringVar(&newTitle, "title", "", "new title")

	var listDiscussion string
	var kinds []string
	var page, pageSize int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List operations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), invoke.ActionListOperations, map[string]interface{}{
				"discussionId":   listDiscussion,
				"operationTypes": kinds,
				"page":           page,
				"pageSize":       pageSize,
			})
		},
	}
	listCmd.Flags().StringVar(&listDiscussion, "discussion", "", "only operations of this discussion")
	listCmd.Flags().StringSliceVar(&kinds, "kind", nil, "only these kinds (repeatable)")
	listCmd.Flags().IntVar(&page, "page", 1, "page number")
	listCmd.Flags().IntVar(&pageSize, "page-size", 0, "page size (0 uses the default)")

	cmd.AddCommand(
		createCmd,
		updateCmd,
		listCmd,
		c.byIDCmd("get OPERATION_ID", "Show an operation", invoke.ActionGetOperation, "operationId"),
	)
	return cmd
}

func (c *cli) invokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke ACTION [PAYLOAD|-]",
		Short: "Run a raw action with a JSON payload",
		Long:  "Runs ACTION exactly as the Lambda handler would. PAYLOAD is a JSON object; '-' reads it from stdin.\nActions: " + strings.Join(invoke.NewDispatcher(nil, nil, nil).Actions(), ", "),
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw json.RawMessage
			if len(args) == 2 {
				if args[1] == "-" {
					data, err := io.ReadAll(cmd.InOrStdin())
					if err != nil {
						return err
					}
					raw = data
				} else {
					raw = json.RawMessage(args[1])
				}
			}
			return c.dispatch(cmd.Context(), invoke.Request{Action: args[0], Payload: raw})
		},
	}
}

func (c *cli) byIDCmd(use, short, action, field string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.run(cmd.Context(), action, map[string]interface{}{field: args[0]})
		},
	}
}

func (c *cli) run(ctx context.Context, action string, payload map[string]interface{}) error {
	for k, v := range payload {
		if s, ok := v.(string); ok && s == "" {
			delete(payload, k)
		}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.dispatch(ctx, invoke.Request{Action: action, Payload: raw})
}

func (c *cli) dispatch(ctx context.Context, req invoke.Request) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.opts.user != "" {
		ctx = common.WithUserID(ctx, c.opts.user)
	}

	d, closeFn, err := c.open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer closeFn()

	resp := d.Dispatch(ctx, req)

	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.Success {
		return errActionFailed{code: resp.Error.Code}
	}
	return nil
}
