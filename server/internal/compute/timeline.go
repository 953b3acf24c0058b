package compute

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"

	"github.com/minerdash/minerdash/pkg/types"
)

// bucketWidth is the timeline slot size in minutes.
const bucketWidth = 5

// Series is the timeline for one robot: parallel bucket labels and mean
// efficiency percentages, in chronological order.
type Series struct {
	Buckets []string  `json:"buckets"`
	Values  []float64 `json:"values"`
}

// bucketKey identifies one timeline slot of one robot.
type bucketKey struct {
	robot  string
	hour   int
	minute int // floor of the 5-minute slot
}

// bucketAcc sums efficiencies as exact decimals.
type bucketAcc struct {
	sum   big.Rat
	count int64
}

// BucketMinute truncates minute to the start of its 5-minute slot.
// 59 maps to 55, never to the next hour.
func BucketMinute(minute int) int {
	return minute / bucketWidth * bucketWidth
}

// BucketLabel formats the slot that contains hour:minute as "HH:MM".
func BucketLabel(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, BucketMinute(minute))
}

// Timeline groups samples into 5-minute buckets per robot and returns the
// mean efficiency of each bucket as a percentage rounded to two decimals of
// the underlying fraction.
//
// Samples with a nil, zero, negative or non-finite efficiency, or with an
// hour/minute outside the day, never reach a bucket, so no bucket is ever empty.
func Timeline(samples []types.Sample) map[string]Series {
	acc := make(map[bucketKey]*bucketAcc)
	for _, s := range samples {
		if s.Efficiency == nil || *s.Efficiency <= 0 || !s.ValidTime() {
			continue
		}
		eff := decimal(*s.Efficiency)
		if eff == nil {
			continue
		}
		k := bucketKey{robot: s.Robot, hour: s.Hour, minute: BucketMinute(s.Minute)}
		a, ok := acc[k]
		if !ok {
			a = &bucketAcc{}
			acc[k] = a
		}
		a.sum.Add(&a.sum, eff)
		a.count++
	}

	keys := make([]bucketKey, 0, len(acc))
	for k := range acc {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.hour != b.hour {
			return a.hour < b.hour
		}
		if a.minute != b.minute {
			return a.minute < b.minute
		}
		return a.robot < b.robot
	})

	out := make(map[string]Series)
	for _, k := range keys {
		a := acc[k]
		ser := out[k.robot]
		ser.Buckets = append(ser.Buckets, BucketLabel(k.hour, k.minute))
		ser.Values = append(ser.Values, percent(&a.sum, a.count))
		out[k.robot] = ser
	}
	return out
}

// decimal returns the value v prints as, so 0.285 is exactly 285/1000
// rather than the nearest binary fraction below it. NaN and ±Inf give nil.
func decimal(v float64) *big.Rat {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(v, 'g', -1, 64))
	if !ok {
		return nil
	}
	return r
}

// percent rounds the mean sum/count half away from zero to two decimals and
// scales it to a percentage: 0.285 gives 29 and 0.33383 gives 33.
func percent(sum *big.Rat, count int64) float64 {
	v := new(big.Rat).Quo(sum, big.NewRat(count, 1))
	v.Mul(v, big.NewRat(100, 1))
	if v.Sign() >= 0 {
		v.Add(v, big.NewRat(1, 2))
	} else {
		v.Sub(v, big.NewRat(1, 2))
	}
	// Quo truncates toward zero.
	n := new(big.Int).Quo(v.Num(), v.Denom())
	return float64(n.Int64())
}
