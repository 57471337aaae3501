package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sweeney/climate-agent/internal/logic"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Command
	}{
		{"menu", "/menu", ShowMenu{}},
		{"publish now", "/DataSensores", PublishNow{}},
		{"mode", "/modo", ShowMode{}},
		{"status", "/status", ShowStatus{}},
		{"factory reset", "/APreset", FactoryReset{}},
		{"restart", "/reset", RestartDevice{}},
		{"clear reset count", "/clearResetCount", ClearResetCount{}},
		{"device info", "/infoDevices", ShowDeviceInfo{}},
		{"surrounding whitespace", "  /status\n", ShowStatus{}},

		{"interval", "/setInterval 30", SetInterval{Seconds: 30}},
		{"interval zero", "/setInterval 0", SetInterval{Seconds: 0}},
		{"interval max uint32", "/setInterval 4294967295", SetInterval{Seconds: 4294967295}},
		{"interval overflow", "/setInterval 4294967296", SetInterval{Seconds: 0}},
		{"interval negative", "/setInterval -5", SetInterval{Seconds: 0}},
		{"interval text", "/setInterval ten", SetInterval{Seconds: 0}},
		{"interval fraction", "/setInterval 2.5", SetInterval{Seconds: 0}},
		{"interval missing", "/setInterval", SetInterval{Seconds: 0}},

		{"mode auto", "/setModo auto", SetMode{Mode: logic.ModeAuto}},
		{"mode manual upper", "/setModo MANUAL", SetMode{Mode: logic.ModeManual}},
		{"mode other", "/setModo turbo", SetMode{Mode: logic.ModeInvalid}},
		{"mode missing", "/setModo", SetMode{Mode: logic.ModeInvalid}},

		{"empty", "", Unrecognized{Raw: ""}},
		{"plain text", "hello", Unrecognized{Raw: "hello"}},
		{"unknown word", "/foo", Unrecognized{Raw: "/foo"}},
		{"wrong case", "/Menu", Unrecognized{Raw: "/Menu"}},
		{"bare word with argument", "/status now", Unrecognized{Raw: "/status now"}},
		{"slash only", "/", Unrecognized{Raw: "/"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.raw))
		})
	}
}
