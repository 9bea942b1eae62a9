package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/ioutil"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/anmitsu/go-shlex"
	"github.com/stevegt/envi"
	. "github.com/stevegt/goadapt"

	"github.com/arnaudmiribel/arctic-metric-assistant/client"
	"github.com/arnaudmiribel/arctic-metric-assistant/core"
	"github.com/arnaudmiribel/arctic-metric-assistant/mock"
	"github.com/arnaudmiribel/arctic-metric-assistant/openai"
	"github.com/arnaudmiribel/arctic-metric-assistant/server"
	"github.com/arnaudmiribel/arctic-metric-assistant/util"
)

// ExampleQuestion is offered to users who don't know what to ask.
const ExampleQuestion = "What's our retention rate?"

// tooLongMsg is shown when the conversation exceeds the token budget.
var tooLongMsg = Spf("Conversation length too long. Please keep it under %d tokens.", core.PromptTokenLimit)

type cmdAsk struct {
	Question string `arg:"" optional:"" help:"Question to ask the assistant; read from stdin if omitted."`
	Edit     bool   `short:"e" help:"Compose the question in METRICS_EDITOR."`
}

// cmdChat is the struct for the chat subcommand.  The chat subcommand
// reads one question per line from stdin and keeps the conversation
// in memory until exit.
type cmdChat struct{}

type cmdMetrics struct{}

type cmdMetric struct {
	Name string `arg:"" help:"Exact metric name."`
	From string `help:"First date to show (YYYY-MM-DD)."`
	To   string `help:"Last date to show (YYYY-MM-DD)."`
}

type cmdModels struct{}

type cmdPrompt struct{}

type cmdServe struct {
	Addr string `default:"127.0.0.1:8080" env:"METRICS_ADDR" help:"Address to listen on."`
}

type cmdTc struct{}

type cmdVersion struct{}

type cliArgs struct {
	Ask         cmdAsk     `cmd:"" help:"Ask the assistant a question and show any metrics it names."`
	Chat        cmdChat    `cmd:"" help:"Have a conversation with the assistant on stdin (/reset, /history, /quit)."`
	Metrics     cmdMetrics `cmd:"" help:"List all known metrics."`
	Metric      cmdMetric  `cmd:"" help:"Show the data of one metric."`
	Models      cmdModels  `cmd:"" help:"List all available models."`
	Prompt      cmdPrompt  `cmd:"" help:"Show the instruction prompt the assistant starts from."`
	Serve       cmdServe   `cmd:"" help:"Serve the assistant over HTTP."`
	Tc          cmdTc      `cmd:"" help:"Calculate the token count of stdin."`
	Version     cmdVersion `cmd:"" help:"Show version."`
	Model       string     `env:"METRICS_MODEL" help:"Model to use."`
	BaseURL     string     `name:"base-url" env:"METRICS_BASE_URL" help:"Base URL of an OpenAI-compatible completions API."`
	Temperature float32    `default:"0.3" env:"METRICS_TEMPERATURE" help:"Sampling temperature."`
	TopP        float32    `name:"top-p" default:"0.9" env:"METRICS_TOP_P" help:"Nucleus sampling probability mass."`
	MaxTokens   int        `env:"METRICS_MAX_TOKENS" help:"Maximum completion length; 0 for the provider default."`
	Demo        bool       `help:"Don't call a model; answer with a random metric."`
	Verbose     bool       `short:"v" help:"Show debug and progress information on stderr."`
}

// CliConfig contains the configuration for the cli
type CliConfig struct {
	// Name is the name of the program
	Name string
	// Description is a short description of the program
	Description string
	// Version is the version of the program
	Version string
	// Exit is the function to call to exit the program
	Exit   func(int)
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	// Now is the date the synthetic metric data ends at.
	Now func() time.Time
	// Streamer, if set, replaces the model client.  Used by tests.
	Streamer client.Streamer
}

// NewCliConfig returns a new Config struct with default values populated
func NewCliConfig() *CliConfig {
	return &CliConfig{
		Name:        "metrics",
		Description: "A chat assistant that finds the metrics answering your questions.",
		Version:     core.CodeVersion(),
		Exit:        func(i int) { os.Exit(i) },
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		Now:         time.Now,
	}
}

// Cli parses the given arguments and then executes the appropriate
// subcommand.
//
// We use this function instead of kong.Parse() so that we can pass in
// the arguments to parse.  This allows us to more easily test the
// cli subcommands.
func Cli(args []string, config *CliConfig) (rc int, err error) {
	defer Return(&err)

	// capture goadapt stdio
	SetStdio(
		config.Stdin,
		config.Stdout,
		config.Stderr,
	)
	defer SetStdio(nil, nil, nil)

	options := []kong.Option{
		kong.Name(config.Name),
		kong.Description(config.Description),
		kong.Exit(config.Exit),
		kong.Writers(config.Stdout, config.Stderr),
		kong.Vars{
			"version": config.Version,
		},
	}

	var cli cliArgs
	var parser *kong.Kong
	parser, err = kong.New(&cli, options...)
	Ck(err)
	ctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1, nil
	}

	if cli.Verbose {
		os.Setenv("DEBUG", "1")
	}

	cmd := ctx.Command()
	Debug("cmd: %s", cmd)

	catalog := core.DefaultCatalog(config.Now())

	// XXX replace this with "command pattern" or "command object"
	switch strings.Split(cmd, " ")[0] {
	case "metrics":
		for _, m := range catalog.Metrics() {
			Pf("%-28s %s\n", m.Name, m.Description)
		}
	case "metric":
		m, err := catalog.Find(cli.Metric.Name)
		if err != nil {
			Fpf(config.Stderr, "Error: %v\n", err)
			return 1, nil
		}
		from, to, err := util.ParseDateRange(cli.Metric.From, cli.Metric.To)
		if err != nil {
			Fpf(config.Stderr, "Error: %v\n", err)
			return 1, nil
		}
		showMetric(config.Stdout, m, m.Slice(from, to))
	case "models":
		models := core.NewModels()
		err = models.SetActive(modelName(&cli))
		Ck(err)
		for _, model := range models.ListModels() {
			Pl(model)
		}
	case "prompt":
		sysmsg, err := core.SysMsg(catalog)
		Ck(err)
		Pl(sysmsg)
	case "tc":
		// get content from stdin and emit token count on stdout
		buf, err := ioutil.ReadAll(config.Stdin)
		Ck(err)
		tk, err := core.NewTiktoken()
		Ck(err)
		count, err := tk.TokenCount(strings.TrimSpace(string(buf)))
		Ck(err)
		Pf("%d\n", count)
	case "version":
		Pf("metrics version %s\n", core.CodeVersion())
	case "ask":
		var question string
		switch {
		case cli.Ask.Question != "":
			question = cli.Ask.Question
		case cli.Ask.Edit:
			question, err = EditPrompt()
			Ck(err)
		default:
			buf, err := ioutil.ReadAll(config.Stdin)
			Ck(err)
			question = string(buf)
		}
		question = strings.TrimSpace(question)
		if question == "" {
			Fpf(config.Stderr, "Error: ask requires a question, for example %q\n", ExampleQuestion)
			return 1, nil
		}
		assistant, err := newAssistant(&cli, config, catalog)
		Ck(err)
		ok, err := ask(assistant, question, config)
		Ck(err)
		if !ok {
			rc = 1
		}
	case "chat":
		assistant, err := newAssistant(&cli, config, catalog)
		Ck(err)
		err = chat(assistant, config)
		Ck(err)
	case "serve":
		assistant, err := newAssistant(&cli, config, catalog)
		Ck(err)
		e := server.New(assistant)
		Fpf(config.Stderr, "serving session %s on %s\n", assistant.SessionID(), cli.Serve.Addr)
		err = e.Start(cli.Serve.Addr)
		Ck(err)
	default:
		Fpf(config.Stderr, "Error: unrecognized command: %s\n", cmd)
		rc = 1
		return
	}

	return
}

// modelName returns the model selected on the command line, or the
// demo model if --demo was given.
func modelName(cli *cliArgs) string {
	if cli.Demo {
		return "demo"
	}
	if cli.Model == "" {
		return core.DefaultModel
	}
	return cli.Model
}

// newAssistant wires the model client, tokenizer, and catalog together.
// Without an API key the assistant falls back to demo mode.
func newAssistant(cli *cliArgs, config *CliConfig, catalog *core.Catalog) (a *core.Assistant, err error) {
	defer Return(&err)

	models := core.NewModels()
	name, model, err := models.FindModel(modelName(cli))
	Ck(err)

	opts := client.DefaultOptions(model.UpstreamName)
	opts.Temperature = cli.Temperature
	opts.TopP = cli.TopP
	opts.MaxTokens = cli.MaxTokens

	streamer := config.Streamer
	if streamer == nil {
		apiKey := envi.String("METRICS_API_KEY", envi.String("OPENAI_API_KEY", ""))
		if model.ProviderName == core.ProviderOpenAI && apiKey == "" {
			Fpf(config.Stderr, "No METRICS_API_KEY set; the LLM is deactivated and answers are random.\n")
			name, model, err = models.FindModel("demo")
			Ck(err)
		}
		switch model.ProviderName {
		case core.ProviderOpenAI:
			streamer = openai.NewClient(apiKey, cli.BaseURL)
		case core.ProviderMock:
			streamer = mock.NewDemo(catalog.Names(), config.Now().UnixNano())
		default:
			Assert(false, "unknown provider: %s", model.ProviderName)
		}
	}
	Debug("model: %s (%s)", name, model.ProviderName)

	tk, err := core.NewTiktoken()
	Ck(err)
	a, err = core.NewAssistant(catalog, tk, streamer, opts)
	Ck(err)
	return
}

// ask sends one question and prints the reply and any detected
// metrics.  It returns false if the question was refused.
func ask(assistant *core.Assistant, question string, config *CliConfig) (ok bool, err error) {
	defer Return(&err)
	reply, err := assistant.Ask(context.Background(), question, config.Stdout)
	if errors.Is(err, core.ErrPromptTooLarge) {
		Debug("ask: %v", err)
		Fpf(config.Stderr, "%s\n", tooLongMsg)
		return false, nil
	}
	Ck(err)
	Pl()
	for _, m := range reply.Metrics {
		Pl()
		showMetric(config.Stdout, m, recent(m.Data))
	}
	return true, nil
}

// chat runs a read-eval-print loop over stdin.
func chat(assistant *core.Assistant, config *CliConfig) (err error) {
	defer Return(&err)
	for _, turn := range assistant.History() {
		Pf("%s\n\n", turn.Content)
	}
	scanner := bufio.NewScanner(config.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		Fpf(config.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return
		case "/reset":
			assistant.Reset()
			Pl("History cleared.")
			continue
		case "/history":
			for _, turn := range assistant.History() {
				Pf("%s:\n%s\n\n", strings.ToUpper(string(turn.Role)), turn.Content)
			}
			continue
		}
		var ok bool
		ok, err = ask(assistant, line, config)
		Ck(err)
		if !ok {
			Fpf(config.Stderr, "Type /reset to clear the chat history.\n")
		}
		Pl()
	}
	err = scanner.Err()
	Ck(err)
	return
}

// recent returns the newest week of points.
func recent(points []core.Point) []core.Point {
	if len(points) > 7 {
		return points[:7]
	}
	return points
}

// showMetric prints a metric header and a date/value table.
func showMetric(w io.Writer, m *core.Metric, points []core.Point) {
	Fpf(w, "Metric detected: %s (%s chart)\n", m.Name, m.Chart)
	Fpf(w, "  %s\n", m.Description)
	for _, p := range points {
		Fpf(w, "  %s  %8.2f\n", p.Date.Format(util.DateLayout), p.Value)
	}
}

// EditPrompt opens an empty temporary file in METRICS_EDITOR and
// returns what the user wrote.
func EditPrompt() (question string, err error) {
	defer Return(&err)

	fh, err := ioutil.TempFile("", "metrics-question")
	Ck(err)
	fn := fh.Name()
	defer os.Remove(fn)
	err = fh.Close()
	Ck(err)

	editor := envi.String("METRICS_EDITOR", "vi +")
	// use shlex to split the editor command
	cmdline, err := shlex.Split(editor, true)
	Ck(err)
	Assert(len(cmdline) > 0, "empty METRICS_EDITOR")
	args := append(cmdline[1:], fn)
	cmd := exec.Command(cmdline[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	err = cmd.Run()
	Ck(err)

	buf, err := ioutil.ReadFile(fn)
	Ck(err)
	question = string(buf)
	return
}
