package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	internal_http "github.com/hadiudoit11/merlin/internal/http"
	"github.com/hadiudoit11/merlin/internal/llm"
	"github.com/hadiudoit11/merlin/internal/log"
	"github.com/hadiudoit11/merlin/internal/settings"
	internal_storage "github.com/hadiudoit11/merlin/internal/storage"
	"github.com/hadiudoit11/merlin/pkg/pipeline"
	"github.com/hadiudoit11/merlin/pkg/service"
)

func SetupCLI(rootCmd *cobra.Command) {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook/import server",
		Run: func(cmd *cobra.Command, args []string) {
			dbConnStr := mustDBFlag(cmd)
			port, _ := cmd.Flags().GetString("port")
			store := initStore(dbConnStr)
			defer store.Close()

			svc := newEventService(store)
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			disp := service.NewDispatcher(ctx, svc, log.GetLogger())
			disp.Start(0)
			defer disp.Stop()

			secret := os.Getenv("WEBHOOK_SECRET")
			if secret == "" {
				log.GetLogger().Warn("WEBHOOK_SECRET not set; webhook signatures will not be verified")
			}
			if err := internal_http.StartServer(port, svc, disp, secret); err != nil {
				log.GetLogger().Errorf("Server failed: %v", err)
				os.Exit(1)
			}
		},
	}
	serveCmd.Flags().String("port", "8080", "HTTP listen port")

	listEventsCmd := &cobra.Command{
		Use:   "list-events",
		Short: "List recent input events",
		Run: func(cmd *cobra.Command, args []string) {
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			svc := newEventService(store)
			listEvents(svc)
		},
	}

	showEventCmd := &cobra.Command{
		Use:   "show-event [event-id]",
		Short: "Show a single input event with its run results",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				log.GetLogger().Errorf("Error parsing event id: %v", err)
				fmt.Fprintf(os.Stderr, "Error: invalid event id: %v\n", err)
				os.Exit(1)
			}
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			svc := newEventService(store)
			showEvent(svc, id)
		},
	}

	reprocessCmd := &cobra.Command{
		Use:   "reprocess [event-id]",
		Short: "Re-run the pipeline for an input event",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				log.GetLogger().Errorf("Error parsing event id: %v", err)
				fmt.Fprintf(os.Stderr, "Error: invalid event id: %v\n", err)
				os.Exit(1)
			}
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			svc := newEventService(store)
			reprocessEvent(svc, id)
		},
	}

	listTasksCmd := &cobra.Command{
		Use:   "list-tasks [org-id]",
		Short: "List an organization's tasks",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			orgID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				log.GetLogger().Errorf("Error parsing org id: %v", err)
				fmt.Fprintf(os.Stderr, "Error: invalid org id: %v\n", err)
				os.Exit(1)
			}
			store := initStore(mustDBFlag(cmd))
			defer store.Close()
			svc := newEventService(store)
			listTasks(svc, orgID)
		},
	}

	rootCmd.AddCommand(serveCmd, listEventsCmd, showEventCmd, reprocessCmd, listTasksCmd)
}

func newEventService(store *internal_storage.PostgresStore) *service.EventService {
	deps := pipeline.Deps{
		Resolver: settings.NewResolver(store),
		NewGen:   llm.NewGenerator,
		Matcher:  pipeline.NewBestEffortMatcher(),
	}
	return service.NewEventService(store, pipeline.NewRegistry(), deps, log.GetLogger())
}

func listEvents(svc *service.EventService) {
	events, err := svc.ListEvents(0)
	if err != nil {
		log.GetLogger().Errorf("Failed to list events: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list events: %v\n", err)
		os.Exit(1)
	}
	if len(events) == 0 {
		fmt.Fprintf(os.Stdout, "No input events found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Input events:\n")
	for _, ev := range events {
		fmt.Fprintf(os.Stdout, "- ID: %d, Source: %s, Type: %s, Status: %s, Tasks: %d, Nodes: %d, Created: %s\n",
			ev.ID, ev.SourceType, ev.EventType, ev.Status,
			len(ev.CreatedTaskIDs), len(ev.CreatedNodeIDs), ev.CreatedAt.Format(time.RFC3339))
	}
}

func showEvent(svc *service.EventService, id int64) {
	ev, err := svc.GetEvent(id)
	if err != nil {
		log.GetLogger().Errorf("Failed to get event: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to get event: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Event %d: %s %s (org %d)\n", ev.ID, ev.SourceType, ev.EventType, ev.OrganizationID)
	fmt.Fprintf(os.Stdout, "Status: %s, Retries: %d, Tasks: %d, Nodes: %d\n",
		ev.Status, ev.RetryCount, len(ev.CreatedTaskIDs), len(ev.CreatedNodeIDs))
	if ev.Error != "" {
		fmt.Fprintf(os.Stdout, "Error: %s\n", ev.Error)
	}
	for _, out := range ev.Results {
		fmt.Fprintf(os.Stdout, "- %s: %s %s\n", out.Job, out.Status, out.Message)
	}
}

func reprocessEvent(svc *service.EventService, id int64) {
	summary, err := svc.Process(context.Background(), id)
	if err != nil {
		log.GetLogger().Errorf("Failed to reprocess event: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to reprocess event: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, "Reprocessed event %d (%d tasks, %d nodes):\n", id, summary.TasksCreated, summary.NodesCreated)
	for _, out := range summary.Outcomes {
		fmt.Fprintf(os.Stdout, "- %s: %s %s\n", out.Job, out.Status, out.Message)
	}
}

func listTasks(svc *service.EventService, orgID int64) {
	tasks, err := svc.ListTasks(orgID)
	if err != nil {
		log.GetLogger().Errorf("Failed to list tasks: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list tasks: %v\n", err)
		os.Exit(1)
	}
	if len(tasks) == 0 {
		fmt.Fprintf(os.Stdout, "No tasks found.\n")
		return
	}
	fmt.Fprintf(os.Stdout, "Tasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(os.Stdout, "- ID: %d, Title: %s, Status: %s, Assignee: %s, Source: %s\n",
			t.ID, t.Title, t.Status, t.AssigneeName, t.Source)
	}
}

func mustDBFlag(cmd *cobra.Command) string {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	return dbConnStr
}

func initStore(dbConnStr string) *internal_storage.PostgresStore {
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
