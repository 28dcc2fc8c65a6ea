package app

import (
	"errors"

	"github.com/integrii/flaggy"
)

const (
	AppName = "radar"
	AppDesc = "Continuous-wave Doppler radar capture and analysis"

	CommandArm      Command = "arm"
	CommandProcess  Command = "process"
	CommandSessions Command = "sessions"
)

var version = "(devel)"

type Command string

// CLI holds the parsed command line.
type CLI struct {
	Command    Command
	ConfigPath string

	// arm
	Sessions int // number of sessions to run, 0 until interrupted

	// process
	InputPath string
	CaptureID int64 // catalog capture the input came from, 0 when unknown

	// arm and process
	PlotPath string

	// sessions
	ResultsOf int64 // list the results of one capture
}

// ParseCLI parses the command line arguments, without the program name.
func ParseCLI(args []string) (*CLI, error) {
	cli := CLI{Sessions: 1}

	parser := flaggy.NewParser(AppName)
	parser.Description = AppDesc
	parser.Version = version

	parser.String(&cli.ConfigPath, "c", "config", "path to the YAML configuration file")

	armCmd := flaggy.NewSubcommand(string(CommandArm))
	armCmd.Description = "arm the radar and save a capture on every trigger"
	armCmd.Int(&cli.Sessions, "n", "sessions", "number of sessions to run, 0 to run until interrupted")
	armCmd.String(&cli.PlotPath, "p", "plot", "render the spectrogram of every processed capture to this image")
	parser.AttachSubcommand(armCmd, 1)

	processCmd := flaggy.NewSubcommand(string(CommandProcess))
	processCmd.Description = "estimate the radial velocity of a capture file"
	processCmd.AddPositionalValue(&cli.InputPath, "file", 1, true, "capture file to analyse")
	processCmd.Int64(&cli.CaptureID, "s", "session", "catalog capture ID the file belongs to")
	processCmd.String(&cli.PlotPath, "p", "plot", "render the spectrogram to this image")
	parser.AttachSubcommand(processCmd, 1)

	sessionsCmd := flaggy.NewSubcommand(string(CommandSessions))
	sessionsCmd.Description = "list the catalogued capture sessions"
	sessionsCmd.Int64(&cli.ResultsOf, "r", "results", "list the analysis results of this capture ID")
	parser.AttachSubcommand(sessionsCmd, 1)

	if err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	switch {
	case armCmd.Used:
		cli.Command = CommandArm
	case processCmd.Used:
		cli.Command = CommandProcess
	case sessionsCmd.Used:
		cli.Command = CommandSessions
	default:
		return nil, errors.New("no command given, expected one of: arm, process, sessions")
	}

	if cli.Sessions < 0 {
		return nil, errors.New("number of sessions must not be negative")
	}

	return &cli, nil
}
