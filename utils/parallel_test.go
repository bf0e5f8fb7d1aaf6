package utils

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.viam.com/test"
	gutils "go.viam.com/utils"
)

func TestRunInParallel(t *testing.T) {
	wait100ms := func(ctx context.Context) error {
		gutils.SelectContextOrWait(ctx, 100*time.Millisecond)
		return ctx.Err()
	}

	elapsed, err := RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, elapsed, test.ShouldBeLessThan, 190*time.Millisecond)
	test.That(t, elapsed, test.ShouldBeGreaterThan, 90*time.Millisecond)

	errFunc := func(ctx context.Context) error {
		return errors.New("bad")
	}

	elapsed, err = RunInParallel(context.Background(), []SimpleFunc{wait100ms, wait100ms, errFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "bad")
	test.That(t, elapsed, test.ShouldBeLessThan, 90*time.Millisecond)

	panicFunc := func(ctx context.Context) error {
		panic(1)
	}

	_, err = RunInParallel(context.Background(), []SimpleFunc{panicFunc})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "panic")
}

func TestParallelForEachRow(t *testing.T) {
	for _, rows := range []int{0, 1, 7, 540} {
		seen := make([]int32, rows)
		var total int32
		ParallelForEachRow(rows, func(row int) {
			atomic.AddInt32(&seen[row], 1)
			atomic.AddInt32(&total, 1)
		})
		test.That(t, total, test.ShouldEqual, int32(rows))
		for _, s := range seen {
			test.That(t, s, test.ShouldEqual, int32(1))
		}
	}
}

func TestOddAtLeastOne(t *testing.T) {
	test.That(t, OddAtLeastOne(-3), test.ShouldEqual, 1)
	test.That(t, OddAtLeastOne(0), test.ShouldEqual, 1)
	test.That(t, OddAtLeastOne(4), test.ShouldEqual, 5)
	test.That(t, OddAtLeastOne(5), test.ShouldEqual, 5)
}

func TestClamp(t *testing.T) {
	test.That(t, ClampInt(0, 1, 5), test.ShouldEqual, 1)
	test.That(t, ClampInt(9, 1, 5), test.ShouldEqual, 5)
	test.That(t, ClampFloat(0.5, 1, 1e9), test.ShouldEqual, 1.0)
	test.That(t, IsFinite(1), test.ShouldBeTrue)
}
