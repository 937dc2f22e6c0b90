package client

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/alanwang67/activation_registry/idl"
	"github.com/alanwang67/activation_registry/registry"
	"github.com/alanwang67/activation_registry/workload"
)

// Result is one executed instruction. Err holds registry outcomes such as
// ErrNotRegistered, which are expected under a random workload.
type Result struct {
	Op      workload.Op
	Start   time.Duration // since the run began
	Latency time.Duration
	Err     error
}

type Report struct {
	Results []Result
	Elapsed time.Duration
}

type Stats struct {
	Count  int
	Errors int
	Mean   time.Duration
	P50    time.Duration
	P99    time.Duration
}

// Run executes instrs in order. It stops early only when ctx ends or the
// connection fails; registry errors are recorded in the report.
func (c *Client) Run(ctx context.Context, instrs []workload.Instruction) (*Report, error) {
	ids := make(map[string]registry.ServerID)
	report := &Report{Results: make([]Result, 0, len(instrs))}
	start := time.Now()

	for i, in := range instrs {
		opStart := time.Now()
		err := c.perform(ctx, in, ids)
		report.Results = append(report.Results, Result{
			Op:      in.Op,
			Start:   opStart.Sub(start),
			Latency: time.Since(opStart),
			Err:     err,
		})
		if err != nil && !isRegistryError(err) {
			report.Elapsed = time.Since(start)
			return report, err
		}
		log.Debugf("operation %d %s %s: %v", i+1, in.Op, in.Name, err)

		if in.Delay > 0 {
			select {
			case <-time.After(in.Delay):
			case <-ctx.Done():
				report.Elapsed = time.Since(start)
				return report, ctx.Err()
			}
		}
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

func (c *Client) perform(ctx context.Context, in workload.Instruction, ids map[string]registry.ServerID) error {
	if in.Op == workload.OpRegister {
		id, err := c.RegisterServerWithID(ctx, idl.ServerDef{
			ApplicationName: in.Name,
			ServerName:      in.Name,
			ServerClassPath: in.Name,
		}, registry.NoServerID)
		var are *registry.AlreadyRegisteredError
		switch {
		case err == nil:
			ids[in.Name] = id
		case errors.As(err, &are):
			ids[in.Name] = are.ID
		}
		return err
	}
	if in.Op == workload.OpList {
		_, err := c.ListServers(ctx)
		return err
	}

	id, known := ids[in.Name]
	if !known || in.Op == workload.OpLookup {
		var err error
		if id, err = c.GetServerID(ctx, in.Name); err != nil {
			return err
		}
		ids[in.Name] = id
		if in.Op == workload.OpLookup {
			return nil
		}
	}

	var err error
	switch in.Op {
	case workload.OpGet:
		_, err = c.GetServer(ctx, id)
	case workload.OpInstall:
		err = c.Install(ctx, id)
	case workload.OpUninstall:
		err = c.Uninstall(ctx, id)
	case workload.OpUnregister:
		err = c.UnregisterServer(ctx, id)
		if err == nil {
			delete(ids, in.Name)
		}
	}
	if errors.Is(err, registry.ErrNotRegistered) {
		delete(ids, in.Name)
	}
	return err
}

func isRegistryError(err error) bool {
	for _, target := range []error{
		registry.ErrAlreadyRegistered,
		registry.ErrNotRegistered,
		registry.ErrAlreadyInstalled,
		registry.ErrAlreadyUninstalled,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Summary groups the results by operation.
func (r *Report) Summary() map[workload.Op]Stats {
	byOp := make(map[workload.Op][]time.Duration)
	errs := make(map[workload.Op]int)
	for _, res := range r.Results {
		byOp[res.Op] = append(byOp[res.Op], res.Latency)
		if res.Err != nil {
			errs[res.Op]++
		}
	}

	out := make(map[workload.Op]Stats, len(byOp))
	for op, lat := range byOp {
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		var total time.Duration
		for _, l := range lat {
			total += l
		}
		out[op] = Stats{
			Count:  len(lat),
			Errors: errs[op],
			Mean:   total / time.Duration(len(lat)),
			P50:    percentile(lat, 0.50),
			P99:    percentile(lat, 0.99),
		}
	}
	return out
}

// Throughput is completed operations per second over the whole run.
func (r *Report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(len(r.Results)) / r.Elapsed.Seconds()
}

func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(q * float64(len(sorted)-1))
	return sorted[i]
}
