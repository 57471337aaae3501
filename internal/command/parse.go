// Package command turns operator text into typed commands and applies them
// to the agent state.
package command

import (
	"strconv"
	"strings"

	"github.com/sweeney/climate-agent/internal/logic"
)

// Command is a parsed operator request. The set of implementations is closed.
type Command interface {
	isCommand()
}

type (
	// ShowMenu lists the available commands.
	ShowMenu struct{}

	// PublishNow sends a telemetry message immediately.
	PublishNow struct{}

	// SetInterval changes the automatic publish interval.
	SetInterval struct{ Seconds uint32 }

	// SetMode switches between automatic and manual publishing.
	SetMode struct{ Mode logic.Mode }

	// ShowMode reports the publishing mode.
	ShowMode struct{}

	// ShowStatus reports counters, interval and link state.
	ShowStatus struct{}

	// FactoryReset erases network credentials and restarts.
	FactoryReset struct{}

	// RestartDevice restarts the agent.
	RestartDevice struct{}

	// ClearResetCount zeroes the boot counter.
	ClearResetCount struct{}

	// ShowDeviceInfo reports host identity.
	ShowDeviceInfo struct{}

	// Unrecognized is any text that is not a known command.
	Unrecognized struct{ Raw string }
)

func (ShowMenu) isCommand()        {}
func (PublishNow) isCommand()      {}
func (SetInterval) isCommand()     {}
func (SetMode) isCommand()         {}
func (ShowMode) isCommand()        {}
func (ShowStatus) isCommand()      {}
func (FactoryReset) isCommand()    {}
func (RestartDevice) isCommand()   {}
func (ClearResetCount) isCommand() {}
func (ShowDeviceInfo) isCommand()  {}
func (Unrecognized) isCommand()    {}

// Command words. Matching is case-sensitive.
const (
	WordMenu            = "/menu"
	WordPublishNow      = "/DataSensores"
	WordSetInterval     = "/setInterval"
	WordSetMode         = "/setModo"
	WordShowMode        = "/modo"
	WordStatus          = "/status"
	WordFactoryReset    = "/APreset"
	WordRestart         = "/reset"
	WordClearResetCount = "/clearResetCount"
	WordDeviceInfo      = "/infoDevices"
)

// bare maps argument-less words to their command.
var bare = map[string]Command{
	WordMenu:            ShowMenu{},
	WordPublishNow:      PublishNow{},
	WordShowMode:        ShowMode{},
	WordStatus:          ShowStatus{},
	WordFactoryReset:    FactoryReset{},
	WordRestart:         RestartDevice{},
	WordClearResetCount: ClearResetCount{},
	WordDeviceInfo:      ShowDeviceInfo{},
}

// Parse converts raw operator text into a Command. It never fails: anything
// it cannot interpret becomes Unrecognized.
func Parse(raw string) Command {
	text := strings.TrimSpace(raw)
	if !strings.HasPrefix(text, "/") {
		return Unrecognized{Raw: raw}
	}

	word, arg, hasArg := strings.Cut(text, " ")

	switch word {
	case WordSetInterval:
		return SetInterval{Seconds: parseSeconds(arg)}
	case WordSetMode:
		return SetMode{Mode: parseMode(arg)}
	}

	if cmd, ok := bare[word]; ok && !hasArg {
		return cmd
	}
	return Unrecognized{Raw: raw}
}

// parseSeconds accepts a non-negative decimal that fits in 32 bits. Anything
// else yields 0, which the dispatcher rejects.
func parseSeconds(arg string) uint32 {
	n, err := strconv.ParseUint(strings.TrimSpace(arg), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(n)
}

func parseMode(arg string) logic.Mode {
	switch logic.Mode(strings.ToLower(strings.TrimSpace(arg))) {
	case logic.ModeAuto:
		return logic.ModeAuto
	case logic.ModeManual:
		return logic.ModeManual
	default:
		return logic.ModeInvalid
	}
}
