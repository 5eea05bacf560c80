// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package sweatpool is a fixed-size worker pool for data-parallel work.
//
// A bounded number of goroutines execute parallel-for "spreads" and
// fire-and-forget tasks, handed to them through lock-free queues, in the
// manner of OpenMP's parallel-for or Grand Central Dispatch's
// dispatch_apply.
//
// # Quick start
//
//	shop, err := sweatpool.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer shop.Close()
//
//	data := make([]float64, 1_000_000)
//	shop.Spread(uint32(len(data)), func(start, end uint32) {
//	    for i := start; i < end; i++ {
//	        data[i] *= 2
//	    }
//	})
//
// # Fire-and-forget and futures
//
//	shop.FireAndForget(func() { log.Println("background work") })
//
//	f := sweatpool.Dispatch(shop, func() int { return 42 })
//	v, err := f.Get()
//
// # Heterogeneous cores
//
// Shops running on asymmetric (big.LITTLE-style) hardware can describe
// their cluster layout once, and Spread will weight chunk sizes by
// relative cluster power instead of splitting evenly:
//
//	shop, _ := sweatpool.New(sweatpool.WithHMP(sweatpool.HMPInfo{
//	    Cores: [3]int{4, 4, 0},
//	    Power: [3]float64{2.0, 1.0, 0},
//	}))
package sweatpool
