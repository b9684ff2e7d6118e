package proc

import (
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestEffectiveCode(t *testing.T) {
	tests := []struct {
		name string
		o    Outcome
		want int
	}{
		{"success", ExitedWith(0), 0},
		{"failure", ExitedWith(1), 1},
		{"not found", ExitedWith(CodeNotFound), 127},
		{"sigpipe", KilledBy(syscall.SIGPIPE), 0},
		{"sigterm", KilledBy(syscall.SIGTERM), 143},
		{"sigkill", KilledBy(syscall.SIGKILL), 137},
		{"sigint", KilledBy(syscall.SIGINT), 130},
		{"pending", Outcome{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EffectiveCode(tt.o))
		})
	}
}

func TestFromWaitStatus(t *testing.T) {
	o, ok := FromWaitStatus(unix.WaitStatus(3 << 8))
	assert.True(t, ok)
	assert.Equal(t, ExitedWith(3), o)

	o, ok = FromWaitStatus(unix.WaitStatus(syscall.SIGPIPE))
	assert.True(t, ok)
	assert.Equal(t, KilledBy(syscall.SIGPIPE), o)

	// Stopped by SIGSTOP: 0x7f in the low byte.
	_, ok = FromWaitStatus(unix.WaitStatus(0x7f | int(syscall.SIGSTOP)<<8))
	assert.False(t, ok)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "exit 2", ExitedWith(2).String())
	assert.Equal(t, "killed by SIGPIPE", KilledBy(syscall.SIGPIPE).String())
	assert.Equal(t, "pending", Outcome{}.String())
}

func TestAggregateStageOrder(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		want    int
	}{
		{"all zero", []Record{{Outcome: ExitedWith(0)}, {Outcome: ExitedWith(0)}}, 0},
		{"first fails", []Record{{Outcome: ExitedWith(1)}, {Outcome: ExitedWith(0)}}, 1},
		{"last fails", []Record{{Outcome: ExitedWith(0)}, {Outcome: ExitedWith(1)}}, 1},
		{"middle fails", []Record{{Outcome: ExitedWith(0)}, {Outcome: ExitedWith(4)}, {Outcome: ExitedWith(0)}}, 4},
		{"earliest wins", []Record{{Outcome: ExitedWith(0)}, {Outcome: ExitedWith(5)}, {Outcome: ExitedWith(9)}}, 5},
		{"broken pipe upstream", []Record{{Outcome: KilledBy(syscall.SIGPIPE)}, {Outcome: ExitedWith(0)}}, 0},
		{"broken pipe then failure", []Record{{Outcome: KilledBy(syscall.SIGPIPE)}, {Outcome: ExitedWith(2)}}, 2},
		{"killed", []Record{{Outcome: KilledBy(syscall.SIGTERM)}, {Outcome: ExitedWith(2)}}, 143},
		{"empty", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.records))
		})
	}
}
