// Package scheduler runs a job at a fixed interval in a background
// goroutine.
//
// A tick is skipped while the previous run is still in flight, so a job
// never races against itself. Panics inside the job are recovered and
// logged; the loop keeps ticking. By default the job also runs once
// immediately on Start, which lets restarted processes catch up on work
// that came due while they were down.
//
// # Usage
//
//	sweep, err := scheduler.New("subscription-sweep", sweeper.Sweep,
//	    scheduler.WithInterval(15*time.Minute),
//	    scheduler.WithLogger(log),
//	)
//	if err != nil {
//	    return err
//	}
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(sweep.Run(ctx))
package scheduler
