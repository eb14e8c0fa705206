// Package consensus implements DifficultyEngine (component C9) and
// BlockVerifier (component C8): the retarget algorithm and the full
// acceptance check a candidate block must pass against the current tip.
package consensus

import (
	"context"
	"errors"
	"math/big"

	"github.com/coraxum/coraxumd/block"
	"github.com/coraxum/coraxumd/chaincfg"
	"github.com/coraxum/coraxumd/store"
)

// DifficultyEngine computes the proof-of-work target for the next block
// given the chain's history.
type DifficultyEngine struct {
	store store.BlockStore
	net   chaincfg.Network
}

// NewDifficultyEngine returns a DifficultyEngine reading history from s.
func NewDifficultyEngine(s store.BlockStore, net chaincfg.Network) *DifficultyEngine {
	return &DifficultyEngine{store: s, net: net}
}

// TargetForHeight computes the target a candidate block at height h must
// meet, following §4.7: genesis gets the loosest target; every retarget
// boundary recomputes from the elapsed time over the last retarget period;
// all other heights inherit the reference block's target, further relaxed
// by the stuck-chain rule once the chain has run long enough to need it.
func (d *DifficultyEngine) TargetForHeight(ctx context.Context, h int64, candidateTime int64) (*big.Int, error) {
	if h == 0 {
		return chaincfg.MaxTarget(), nil
	}

	tip, err := d.store.ByIndex(ctx, h-1)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ruleError(ErrRetargetDataMissing, "predecessor block unavailable")
		}
		return nil, err
	}

	var target *big.Int
	if h%chaincfg.RetargetPeriod == 0 {
		target, err = d.retarget(ctx, h, tip)
		if err != nil {
			return nil, err
		}
	} else {
		reference, err := d.referenceBlock(ctx, tip)
		if err != nil {
			return nil, err
		}
		target = new(big.Int).Set(reference.Target)

		// The stuck-chain relief only applies off a retarget boundary,
		// matching block.py's get_target: its if/elif/else is mutually
		// exclusive, with the relief penalty reachable only from the
		// final else.
		if chaincfg.StuckChainReliefHeight(h) {
			tipTime, err := parseUnixSeconds(tip.Time)
			if err != nil {
				return nil, err
			}
			delta := candidateTime - tipTime
			blockTime := chaincfg.TargetBlockTime(d.net)
			if delta > blockTime {
				penalty := new(big.Int).Mul(target, big.NewInt(4*delta))
				penalty.Div(penalty, big.NewInt(blockTime))
				target = capAtMax(penalty)
			}
		}
	}

	return target, nil
}

// retarget implements the RETARGET_PERIOD-boundary recomputation.
func (d *DifficultyEngine) retarget(ctx context.Context, h int64, tip *block.Block) (*big.Int, error) {
	twoWeeksAgo, err := d.store.ByIndex(ctx, h-chaincfg.RetargetPeriod)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ruleError(ErrRetargetDataMissing, "retarget reference block unavailable")
		}
		return nil, err
	}
	tipTime, err := parseUnixSeconds(tip.Time)
	if err != nil {
		return nil, err
	}
	oldTime, err := parseUnixSeconds(twoWeeksAgo.Time)
	if err != nil {
		return nil, err
	}
	elapsed := tipTime - oldTime
	switch {
	case elapsed > chaincfg.TwoWeeks:
		elapsed = chaincfg.TwoWeeks
	case elapsed < chaincfg.HalfWeek:
		elapsed = chaincfg.HalfWeek
	}

	reference, err := d.referenceBlock(ctx, tip)
	if err != nil {
		return nil, err
	}

	newTarget := new(big.Int).Mul(reference.Target, big.NewInt(elapsed))
	newTarget.Div(newTarget, big.NewInt(chaincfg.TwoWeeks))
	return capAtMax(newTarget), nil
}

// referenceBlock walks backwards from tip to find the first block whose
// target is not MAX_TARGET and whose special_min is false, protecting the
// retarget computation from runaway easy blocks.
//
// The open question recorded against this rule in the design notes: the
// original indexes the walk-back position directly rather than position+1
// in some arms. That behavior is preserved here rather than corrected —
// the walk starts at tip itself (position h-1, already the candidate's
// immediate predecessor), not at h-2.
func (d *DifficultyEngine) referenceBlock(ctx context.Context, tip *block.Block) (*block.Block, error) {
	current := tip
	for {
		if current.Target.Cmp(chaincfg.MaxTarget()) != 0 && !current.SpecialMin {
			return current, nil
		}
		if current.Index == 0 {
			return current, nil
		}
		prev, err := d.store.ByIndex(ctx, current.Index-1)
		if err != nil {
			return nil, err
		}
		current = prev
	}
}

func capAtMax(target *big.Int) *big.Int {
	max := chaincfg.MaxTarget()
	if target.Cmp(max) > 0 {
		return max
	}
	return target
}
