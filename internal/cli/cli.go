// Package cli parses proctor's command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"
)

type Command string

const (
	CommandRun       Command = "run"
	CommandStatus    Command = "status"
	CommandAnswer    Command = "answer"
	CommandDraft     Command = "draft"
	CommandChoose    Command = "choose"
	CommandFlag      Command = "flag"
	CommandSkip      Command = "skip"
	CommandFinish    Command = "finish"
	CommandAbort     Command = "abort"
	CommandQuestions Command = "questions"
	CommandDevices   Command = "devices"
	CommandDoctor    Command = "doctor"
	CommandVersion   Command = "version"
	CommandHelp      Command = "help"
)

type operands int

const (
	operandsNone operands = iota
	operandsText
	operandsOne
	operandsOptionalOne
)

var validCommands = map[Command]operands{
	CommandRun:       operandsNone,
	CommandStatus:    operandsNone,
	CommandAnswer:    operandsText,
	CommandDraft:     operandsText,
	CommandChoose:    operandsOne,
	CommandFlag:      operandsOptionalOne,
	CommandSkip:      operandsNone,
	CommandFinish:    operandsNone,
	CommandAbort:     operandsNone,
	CommandQuestions: operandsNone,
	CommandDevices:   operandsNone,
	CommandDoctor:    operandsNone,
	CommandVersion:   operandsNone,
	CommandHelp:      operandsNone,
}

type Parsed struct {
	Command       Command
	ConfigPath    string
	ShowHelp      bool
	Debug         bool
	Token         string
	QuestionsFile string

	// Text carries answer and draft text; Operand carries a choice key
	// or question id.
	Text    string
	Operand string
	Unflag  bool
}

// IsRemote reports whether the command is forwarded to a running session.
func (p Parsed) IsRemote() bool {
	switch p.Command {
	case CommandStatus, CommandAnswer, CommandDraft, CommandChoose,
		CommandFlag, CommandSkip, CommandFinish, CommandAbort:
		return true
	default:
		return false
	}
}

func Parse(args []string) (Parsed, error) {
	var parsed Parsed
	var showVersion bool

	fs := pflag.NewFlagSet("proctor", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&parsed.ConfigPath, "config", "", "config file path")
	fs.StringVar(&parsed.Token, "token", "", "assessment access token")
	fs.StringVar(&parsed.QuestionsFile, "questions", "", "question bank file")
	fs.BoolVar(&parsed.Unflag, "off", false, "clear a review flag")
	fs.BoolVar(&parsed.Debug, "debug", false, "debug logging")
	fs.BoolVar(&showVersion, "version", false, "show version")
	fs.BoolVarP(&parsed.ShowHelp, "help", "h", false, "show help")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return Parsed{Command: CommandHelp, ShowHelp: true}, nil
		}
		return Parsed{}, err
	}
	if fs.Changed("config") && strings.TrimSpace(parsed.ConfigPath) == "" {
		return Parsed{}, errors.New("--config requires a path")
	}

	switch {
	case parsed.ShowHelp:
		parsed.Command = CommandHelp
		return parsed, nil
	case showVersion:
		parsed.Command = CommandVersion
		return parsed, nil
	}

	positional := fs.Args()
	if len(positional) == 0 {
		parsed.Command = CommandHelp
		parsed.ShowHelp = true
		return parsed, nil
	}

	cmd := Command(positional[0])
	kind, ok := validCommands[cmd]
	if !ok {
		return Parsed{}, fmt.Errorf("unknown command: %s", positional[0])
	}
	parsed.Command = cmd
	parsed.ShowHelp = cmd == CommandHelp

	rest := positional[1:]
	switch kind {
	case operandsNone:
		if len(rest) > 0 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", cmd)
		}
	case operandsText:
		parsed.Text = strings.Join(rest, " ")
		if strings.TrimSpace(parsed.Text) == "" && cmd == CommandAnswer {
			return Parsed{}, fmt.Errorf("%s requires text", cmd)
		}
	case operandsOne:
		if len(rest) != 1 {
			return Parsed{}, fmt.Errorf("%s requires exactly one argument", cmd)
		}
		parsed.Operand = rest[0]
	case operandsOptionalOne:
		if len(rest) > 1 {
			return Parsed{}, fmt.Errorf("unexpected arguments after command %q", cmd)
		}
		if len(rest) == 1 {
			parsed.Operand = rest[0]
		}
	}

	if parsed.Token != "" && parsed.QuestionsFile != "" {
		return Parsed{}, errors.New("--token and --questions are mutually exclusive")
	}
	if (parsed.Token != "" || parsed.QuestionsFile != "") && cmd != CommandRun && cmd != CommandQuestions {
		return Parsed{}, fmt.Errorf("--token and --questions apply to run and questions, not %q", cmd)
	}
	if parsed.Unflag && cmd != CommandFlag {
		return Parsed{}, fmt.Errorf("--off applies to flag, not %q", cmd)
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command> [args]

Session:
  run         Load questions and run the assessment in this terminal
  status      Print the running session's state
  answer TEXT Submit TEXT for the current question
  draft TEXT  Replace the typed draft for the current question
  choose KEY  Submit option KEY for a multiple-choice question
  flag [ID]   Flag a question for review (current when ID is omitted)
  skip        Move on without answering
  finish      Submit the assessment now
  abort       End the session without submitting

Tools:
  questions   Load and print a question bank
  devices     List available input devices
  doctor      Run configuration and environment checks
  version     Print version information
  help        Show this help

Flags:
  --config PATH      Config file path (default: $XDG_CONFIG_HOME/proctor/config.jsonc)
  --token TOKEN      Assessment access token (run, questions)
  --questions FILE   Question bank file instead of the backend (run, questions)
  --off              Clear the review flag (flag)
  --debug            Debug logging
  -h, --help         Show help
  --version          Show version
`, binaryName)
}
