// Package processor post-processes command output with configurable
// processor chains.
package processor

import (
	"fmt"
	"strings"
)

const (
	ProcessorTypeTrim      string = "trim"
	ProcessorTypeDropEmpty string = "drop_empty"
	ProcessorTypeLastLine  string = "last_line"
)

// Processor defines the interface for processing string slices.
type Processor interface {
	// Process applies the processor's logic to the input lines.
	Process([]string) ([]string, error)
	Name() string
}

// ProcessorChain manages a collection of processors and applies them in sequence.
type ProcessorChain struct {
	processors map[string]Processor
}

func NewProcessorChain() *ProcessorChain {
	pc := &ProcessorChain{
		processors: make(map[string]Processor),
	}
	pc.registerDefaults()
	return pc
}

func (pc *ProcessorChain) registerDefaults() {
	pc.Register(&TrimProcessor{})
	pc.Register(&DropEmptyProcessor{})
	pc.Register(&LastLineProcessor{})
}

// Register adds a processor to the chain.
func (pc *ProcessorChain) Register(p Processor) {
	pc.processors[p.Name()] = p
}

// Process applies the named processors to lines in order.
func (pc *ProcessorChain) Process(lines []string, processorNames ...string) ([]string, error) {
	for _, name := range processorNames {
		if _, exists := pc.processors[name]; !exists {
			return nil, fmt.Errorf("processor %q not registered", name)
		}
	}
	result := lines
	for _, name := range processorNames {
		if len(result) == 0 {
			break
		}
		var err error
		result, err = pc.processors[name].Process(result)
		if err != nil {
			return nil, fmt.Errorf("%s processor failed: %w", name, err)
		}
	}
	return result, nil
}

// ProcessOutput splits raw command output into lines and runs the chain.
func (pc *ProcessorChain) ProcessOutput(output string, processorNames ...string) ([]string, error) {
	return pc.Process(Lines(output), processorNames...)
}

// Lines splits output on newlines, tolerating CRLF and a trailing newline.
func Lines(output string) []string {
	output = strings.TrimRight(strings.ReplaceAll(output, "\r\n", "\n"), "\n")
	if output == "" {
		return nil
	}
	return strings.Split(output, "\n")
}

// TrimProcessor trims whitespace from each line in the input.
type TrimProcessor struct{}

func (p *TrimProcessor) Name() string { return ProcessorTypeTrim }
func (p *TrimProcessor) Process(lines []string) ([]string, error) {
	trimmed := make([]string, len(lines))
	for i, line := range lines {
		trimmed[i] = strings.TrimSpace(line)
	}
	return trimmed, nil
}

// DropEmptyProcessor removes blank lines.
type DropEmptyProcessor struct{}

func (p *DropEmptyProcessor) Name() string { return ProcessorTypeDropEmpty }
func (p *DropEmptyProcessor) Process(lines []string) ([]string, error) {
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) != "" {
			kept = append(kept, line)
		}
	}
	return kept, nil
}

// LastLineProcessor keeps only the final line.
type LastLineProcessor struct{}

func (p *LastLineProcessor) Name() string { return ProcessorTypeLastLine }
func (p *LastLineProcessor) Process(lines []string) ([]string, error) {
	return lines[len(lines)-1:], nil
}

// ParseKeyValue parses "key: value" lines into a map. A later line with the
// same key wins.
func ParseKeyValue(lines []string) (map[string]string, error) {
	kv := make(map[string]string)
	for _, line := range lines {
		parts := strings.SplitN(strings.TrimSpace(line), ":", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			return nil, fmt.Errorf("empty key in line: %q", line)
		}
		kv[key] = strings.TrimSpace(parts[1])
	}
	return kv, nil
}
