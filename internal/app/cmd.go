package app

import (
	"io"
	"os"

	"github.com/spf13/cobra"
)

// options は全サブコマンドで共有するフラグ値。
type options struct {
	out        io.Writer
	configPath string
}

// NewRootCommand はstreamqaのコマンドツリーを構築する。
// サブコマンドを省略した場合はserveとして起動する。
// wはログと標準出力の書き込み先。
func NewRootCommand(w io.Writer) *cobra.Command {
	opts := &options{out: w}

	root := &cobra.Command{
		Use:   "streamqa",
		Short: "Q&A dashboard for Twitch streamers",
		Long: `streamqa serves the streamer dashboard, the viewer ask page and the
embed endpoint used by stream overlays.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	root.SetOut(w)
	root.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"),
		"YAML config file path (environment variables override its values)")

	root.AddCommand(
		newServeCommand(opts),
		newWorkerCommand(opts),
		newMigrateCommand(opts),
		newHealthcheckCommand(),
		newURLsCommand(opts),
	)
	return root
}

func newServeCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func newWorkerCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run background jobs (expired session cleanup)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker(cmd.Context(), opts)
		},
	}
}

func newMigrateCommand(opts *options) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply all pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, steps)
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "apply only N migrations (negative rolls back); 0 applies all")
	return cmd
}

// newHealthcheckCommand はdistroless環境でのDockerヘルスチェック用サブコマンド。
// 設定の読み込みを行わないため、必須の環境変数がなくても動作する。
func newHealthcheckCommand() *cobra.Command {
	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Probe the local /health endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkHealth(cmd.Context(), healthcheckURL(port))
		},
	}
	cmd.Flags().StringVar(&port, "port", port, "port the server listens on")
	return cmd
}

func newURLsCommand(opts *options) *cobra.Command {
	var copyAsk bool

	cmd := &cobra.Command{
		Use:   "urls <twitch-login>",
		Short: "Print the dashboard, embed and ask URLs of a streamer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runURLs(cmd.Context(), opts, args[0], copyAsk)
		},
	}
	cmd.Flags().BoolVar(&copyAsk, "copy", false, "copy the ask URL to the terminal clipboard (OSC 52)")
	return cmd
}
