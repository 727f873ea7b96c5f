package servecmder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatbot/pkg/config"
	"github.com/papercomputeco/chatbot/pkg/devserver"
	"github.com/papercomputeco/chatbot/pkg/logger"
)

type devCommander struct {
	listen         string
	secret         string
	tokenTTL       time.Duration
	chunkDelay     time.Duration
	duplicateEvery int
	splitRecords   bool
	failAfter      int
	noSeed         bool
	debug          bool
}

const devLongDesc string = `Run an in-memory chatbot backend.

The development backend serves the same routes as the real one: login and
registration, chat with a streaming endpoint, the knowledge base and user
administration. Replies are scripted echoes. Everything is lost on exit.

Unless --no-seed is given it starts with three accounts, each with the
username as password: admin (admin), manager (knowledge manager) and user.

The stream can be made hostile to exercise clients:
  --duplicate-every N   re-send every Nth record verbatim
  --split-records       write each record in two halves
  --fail-after N        send an error record after N chunks

Examples:
  chatbot serve dev
  chatbot serve dev --listen :9090 --chunk-delay 50ms --duplicate-every 3`

const devShortDesc string = "Run an in-memory development backend"

func NewDevCmd() *cobra.Command {
	cmder := &devCommander{}

	cmd := &cobra.Command{
		Use:   "dev",
		Short: devShortDesc,
		Long:  devLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.DevServerFlags, []string{config.FlagListen})
			cmder.listen = config.FromViper(v).DevServer.Listen
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.DevServerFlags, config.FlagListen, &cmder.listen)
	cmd.Flags().StringVar(&cmder.secret, "secret", "", "HMAC secret for issued tokens (default: random)")
	cmd.Flags().DurationVar(&cmder.tokenTTL, "token-ttl", 24*time.Hour, "Lifetime of issued tokens")
	cmd.Flags().DurationVar(&cmder.chunkDelay, "chunk-delay", 30*time.Millisecond, "Pause between streamed chunks")
	cmd.Flags().IntVar(&cmder.duplicateEvery, "duplicate-every", 0, "Re-send every Nth streamed record")
	cmd.Flags().BoolVar(&cmder.splitRecords, "split-records", false, "Write each streamed record in two halves")
	cmd.Flags().IntVar(&cmder.failAfter, "fail-after", 0, "Send an error record after N chunks")
	cmd.Flags().BoolVar(&cmder.noSeed, "no-seed", false, "Start without demo accounts and articles")

	return cmd
}

func (c *devCommander) run() error {
	log := logger.New(logger.WithDebug(c.debug), logger.WithPretty(true))

	server, err := devserver.New(devserver.Config{
		ListenAddr:     c.listen,
		Secret:         []byte(c.secret),
		TokenTTL:       c.tokenTTL,
		ChunkDelay:     c.chunkDelay,
		DuplicateEvery: c.duplicateEvery,
		SplitRecords:   c.splitRecords,
		FailAfter:      c.failAfter,
		SeedAccounts:   !c.noSeed,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating dev server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("dev server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		log.Info("received signal, shutting down", "signal", sig.String())
		if err := server.Shutdown(); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}
}
