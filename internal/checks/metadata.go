package checks

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/internal/processor"
)

const (
	metadataVariable = "zfs_default_ibs"
	// Indirect block size shift: 1 << 14 = 16K metadata blocks.
	metadataBlockShift = 14
)

var metadataCommand = fmt.Sprintf("echo '%s/D' | mdb -k", metadataVariable)

type MetadataResult struct {
	Status `bson:",inline"`
	Value  *int `json:"value,omitempty" bson:"value,omitempty"`
}

// MetadataBlocks verifies the kernel's default indirect block shift.
func (c *Checker) MetadataBlocks(ctx context.Context) MetadataResult {
	logger := lg.FromContext(ctx)

	out, err := c.Exec.Execute(ctx, metadataCommand, orDefault(c.Options.MDBTimeout, DefaultMDBTimeout))
	if err != nil {
		logger.Error("could not execute mdb command", lg.Err(err))
		return MetadataResult{Status: commandFailure(ctx, err)}
	}

	lines, err := c.processors().ProcessOutput(out.Output,
		processor.ProcessorTypeTrim, processor.ProcessorTypeDropEmpty, processor.ProcessorTypeLastLine)
	if err != nil {
		return MetadataResult{Status: failed(err.Error())}
	}
	kv, err := processor.ParseKeyValue(lines)
	if err != nil {
		return MetadataResult{Status: failed(err.Error())}
	}
	raw, found := kv[metadataVariable]
	if !found {
		return MetadataResult{Status: failed(fmt.Sprintf("no %s value in mdb output: %q", metadataVariable, out.Output))}
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return MetadataResult{Status: failed(fmt.Sprintf("invalid %s value %q", metadataVariable, raw))}
	}

	res := MetadataResult{Status: ok(), Value: &value}
	if value != metadataBlockShift {
		entry := fmt.Sprintf("%s: %d", metadataVariable, value)
		logger.Error("unexpected metadata block size", lg.String("entry", entry))
		res.Status = failed(entry)
	}
	return res
}
