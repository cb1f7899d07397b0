package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

func newLeadsWatchCmd() *cobra.Command {
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print the record count whenever the store changes",
		Long: `Watch the lead store file and print the record count after every change.
Changes are debounced so a burst of writes prints once.

Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := adminApp()
			if err != nil {
				return err
			}
			store := a.store()
			path, err := filepath.Abs(store.Path())
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			// The store is replaced by rename, so watch its directory.
			if err := watcher.Add(filepath.Dir(path)); err != nil {
				return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
			}

			debounce := time.Duration(debounceMs) * time.Millisecond
			report := func() {
				n, err := store.Count()
				if err != nil {
					fmt.Printf("%s  error: %v\n", time.Now().Format(time.TimeOnly), err)
					return
				}
				fmt.Printf("%s  registros: %d\n", time.Now().Format(time.TimeOnly), n)
			}

			fmt.Printf("Watching %s. Press Ctrl-C to stop.\n", path)
			report()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			timer := time.NewTimer(debounce)
			timer.Stop() // Don't fire immediately.

			for {
				select {
				case <-sigCh:
					fmt.Println("\nStopping watcher.")
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if isStoreEvent(event, path) {
						timer.Reset(debounce)
					}

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					a.logger.Warn("watch error", "err", err)

				case <-timer.C:
					report()
				}
			}
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 300, "debounce interval in milliseconds")
	return cmd
}

// isStoreEvent reports whether event changes the file at path.
func isStoreEvent(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != filepath.Clean(path) {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
