package checks

import (
	"context"

	"github.com/andrej220/nexcheck/internal/diskqual"
)

// DiskPerf benchmarks sequential reads on every inventory disk. Results
// follow the inventory order.
func (c *Checker) DiskPerf(ctx context.Context) ([]diskqual.Result, error) {
	disks, err := c.Discovery.Disks(ctx)
	if err != nil {
		return nil, err
	}
	opts := c.diskPerfDefaults()

	tasks := make([]diskqual.Task, 0, len(disks))
	for _, d := range disks {
		tasks = append(tasks, diskqual.Task{DeviceID: d.LogicalDevice, BlockSizeKB: opts.BlockSizeKB, Duration: opts.Duration})
	}
	h := &diskqual.Harness{
		Workers: opts.Workers,
		Probe: &diskqual.ReadProbe{
			Exec:             c.Exec,
			DDPath:           opts.DDPath,
			DevicePathFormat: opts.DevicePathFormat,
		},
	}
	byDevice := h.Run(ctx, tasks)

	results := make([]diskqual.Result, 0, len(byDevice))
	for _, t := range tasks {
		if r, ok := byDevice[t.DeviceID]; ok {
			results = append(results, r)
			delete(byDevice, t.DeviceID)
		}
	}
	return results, nil
}
