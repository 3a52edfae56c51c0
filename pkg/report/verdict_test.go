package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerdict_PassesWithNoFailures(t *testing.T) {
	v := NewVerdict()
	v.Info("dut", "warmup took 4s")
	assert.True(t, v.Passed())
}

func TestVerdict_FailsOnceAnyTargetHasAFailure(t *testing.T) {
	v := NewVerdict()
	v.Fail("neighbor1", "bgpv4 flapped twice")
	assert.False(t, v.Passed())
}

func TestVerdict_FailsAccumulatePerTarget(t *testing.T) {
	v := NewVerdict()
	v.Fail("dut", "outage exceeded reboot_limit")
	v.Fail("dut", "graceful duration exceeded graceful_limit")
	v.Fail("neighbor1", "lacp flapped")

	fails := v.Fails()
	assert.Len(t, fails["dut"], 2)
	assert.Len(t, fails["neighbor1"], 1)
}

func TestVerdict_FailsAndInfosReturnIndependentCopies(t *testing.T) {
	v := NewVerdict()
	v.Fail("dut", "first")

	fails := v.Fails()
	fails["dut"] = append(fails["dut"], "mutated")

	assert.Len(t, v.Fails()["dut"], 1)
}
