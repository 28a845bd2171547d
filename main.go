//go:build !gui

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/metcalfc/commonplace/internal/book"
	"github.com/metcalfc/commonplace/internal/config"
	"github.com/metcalfc/commonplace/internal/logger"
	"github.com/metcalfc/commonplace/internal/reader"
	"github.com/metcalfc/commonplace/internal/relay"
	"github.com/metcalfc/commonplace/internal/server"
	"github.com/metcalfc/commonplace/internal/view"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	emptyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)
)

type keyMap struct {
	Next  key.Binding
	Prev  key.Binding
	First key.Binding
	Quit  key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Prev, k.First, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Next: key.NewBinding(
		key.WithKeys("right", "l", " ", "pgdown"),
		key.WithHelp("→/space", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("left", "h", "pgup"),
		key.WithHelp("←", "previous"),
	),
	First: key.NewBinding(
		key.WithKeys("home"),
		key.WithHelp("home", "first spread"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "Q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// turnDoneMsg is sent from the page-turn timer when a turn completes.
type turnDoneMsg reader.State

type model struct {
	*reader.Reader
	title     string
	positions positions
	log       *logger.Logger
	help      help.Model
	quitting  bool
	width     int
	height    int
}

func newModel(sess *session, r *reader.Reader, pos positions, log *logger.Logger) model {
	return model{
		Reader:    r,
		title:     sess.title,
		positions: pos,
		log:       log,
		help:      help.New(),
		width:     80,
		height:    24,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Next):
			m.Handle(reader.SignalNext)
		case key.Matches(msg, keys.Prev):
			m.Handle(reader.SignalPrev)
		case key.Matches(msg, keys.First):
			m.Seek(0)
		case key.Matches(msg, keys.Quit):
			m.save()
			m.Close()
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case turnDoneMsg:
		m.log.Debug("turned page", "index", msg.CurrentIndex)
		return m, nil
	}

	return m, nil
}

func (m model) save() {
	if err := m.positions.set(m.State().CurrentIndex); err != nil {
		m.log.Warn("could not save reading position", "error", err)
	}
}

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if len(m.Pages()) == 0 {
		return emptyStyle.Render("Nothing to read.")
	}

	// Title, status and help take a line each, plus one blank line.
	pageHeight := m.height - 4
	if pageHeight < 3 {
		pageHeight = 3
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.title),
		"",
		view.Spread(m.CurrentSpread(), m.width, pageHeight),
		view.Status(m.SpreadNumber(), m.TotalSpreads(), m.State()),
		m.help.View(keys),
	)
}

// readerOptions are the flags shared by the commands that open a reader.
type readerOptions struct {
	configPath string
	maxChars   int
	single     bool
	fresh      bool
	logFile    string
}

func addReaderFlags(cmd *cobra.Command) {
	cmd.Flags().Int("max-chars", 0, "Characters per page (default from config: 1000)")
	cmd.Flags().Bool("single", false, "Show one page at a time instead of a two-page spread")
	cmd.Flags().Bool("fresh", false, "Start from the first page and forget the saved position")
	cmd.Flags().String("log-file", "", "Write logs to this file")
}

func readReaderOptions(cmd *cobra.Command) (readerOptions, error) {
	var opts readerOptions
	var err error
	if opts.configPath, err = cmd.Flags().GetString("config"); err != nil {
		return opts, err
	}
	if opts.maxChars, err = cmd.Flags().GetInt("max-chars"); err != nil {
		return opts, err
	}
	if opts.maxChars < 0 {
		return opts, fmt.Errorf("--max-chars must be positive, got %d", opts.maxChars)
	}
	if opts.single, err = cmd.Flags().GetBool("single"); err != nil {
		return opts, err
	}
	if opts.fresh, err = cmd.Flags().GetBool("fresh"); err != nil {
		return opts, err
	}
	if opts.logFile, err = cmd.Flags().GetString("log-file"); err != nil {
		return opts, err
	}
	return opts, nil
}

// loadConfig reads the config file and applies the reader flags over it.
func (o readerOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.maxChars > 0 {
		cfg.Book.MaxCharsPerPage = o.maxChars
	}
	if o.single {
		cfg.Book.PagesPerView = 1
	}
	return cfg, cfg.Validate()
}

// readerLogger never writes to the terminal the reader draws on.
func (o readerOptions) readerLogger() (*logger.Logger, error) {
	if o.logFile == "" {
		return logger.Nop(), nil
	}
	return logger.NewFile(o.logFile)
}

func runReader(sess *session, cfg *config.Config, opts readerOptions, log *logger.Logger) error {
	var p *tea.Program
	r := reader.New(sess.pages, reader.Options{
		PagesPerView: cfg.Book.PagesPerView,
		FlipDuration: cfg.Book.FlipDuration,
		OnChange: func(st reader.State) {
			if p != nil {
				p.Send(turnDoneMsg(st))
			}
		},
	})
	defer r.Close()

	pos := openPositions(sess, log)
	if opts.fresh {
		if err := pos.clear(); err != nil {
			log.Warn("could not forget reading position", "error", err)
		}
	} else {
		r.Seek(pos.get())
	}

	p = tea.NewProgram(newModel(sess, r, pos, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read FILE|-",
		Short: "Read a local document in the terminal",
		Long: `Open a markdown file (with optional YAML front matter), an EPUB, an
image manifest (.json/.yaml) or plain text. Use - to read stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readReaderOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := opts.readerLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			sess, err := loadFile(args[0], bookOptions(cfg))
			if err != nil {
				return err
			}
			log.Info("opened document", "path", args[0], "pages", len(sess.pages))
			return runReader(sess, cfg, opts, log)
		},
	}
	addReaderFlags(cmd)
	return cmd
}

func newBookCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "book AUTHOR_SLUG",
		Short: "Read an author's commonplace book from the document store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := readReaderOptions(cmd)
			if err != nil {
				return err
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			log, err := opts.readerLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			s, closeStore, err := openStore(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			sess, err := loadLibrary(cmd.Context(), s, args[0], bookOptions(cfg))
			if err != nil {
				return err
			}
			log.Info("assembled book", "author", args[0], "pages", len(sess.pages))
			return runReader(sess, cfg, opts, log)
		},
	}
	addReaderFlags(cmd)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the book API and the chat relay webhook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.LogMode)
			if err != nil {
				return err
			}
			defer log.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, log)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	s, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	routes := server.RouterConfig{
		Log: log,
		BookHandler: &server.BookHandler{
			Store:    s,
			Renderer: book.NewRenderer(),
			Defaults: bookOptions(cfg),
		},
	}
	if err := cfg.RequireRelay(); err != nil {
		log.Warn("chat relay disabled", "error", err)
	} else {
		bot := relay.NewBot(relay.BotConfig{
			RoomID:           cfg.Relay.RoomID,
			BotUserID:        cfg.Relay.BotUserID,
			DefaultRecipient: cfg.Relay.DefaultRecipient,
		}, relay.NewClient(cfg.Relay.IngestURL, cfg.Relay.APIKey, nil), log)
		routes.RelayHandler = &server.RelayHandler{Bot: bot, HSToken: cfg.Relay.HSToken}
		log.Info("chat relay enabled", "room_id", cfg.Relay.RoomID)
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.NewRouter(routes),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "commonplace",
		Short: "Read commonplace books page by page",
		Long: `commonplace binds an author's published works into a paginated book
and reads it two pages at a time, in the terminal or over HTTP.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}
	root.SetVersionTemplate("commonplace {{.Version}}\n")
	root.PersistentFlags().String("config", "", "YAML config file")
	root.AddCommand(newReadCmd(), newBookCmd(), newServeCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
