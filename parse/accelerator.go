package parse

import (
	"encoding/binary"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/SigmaX-ai/bolson/buffer"
	"github.com/SigmaX-ai/bolson/errors"
)

// outputRegionBytes is the per-instance output region size requested from
// the allocator for both the offsets and values regions. HugePageAllocator
// ignores this and always returns its fixed capacity, matching battery.cpp's
// PrepareOutputBatches allocating allocator.fixed_capacity() bytes for each
// region regardless of how many rows are actually produced; a heap-backed
// allocator (as used in tests) honors the requested size exactly.
const outputRegionBytes = 1 << 20 // 1 MiB

// Register bit constants, grounded verbatim on
// original_source/src/bolson/parse/opae/battery.h.
const (
	statIdle = 1 << 0
	statBusy = 1 << 1
	statDone = 1 << 2

	ctrlStart = 1 << 0
	ctrlStop  = 1 << 1
	ctrlReset = 1 << 2
)

// Per-instance register group sizes, in 32-bit words, grounded on battery.h.
const (
	defaultRegs        = 4 // Fletcher control/status/return-lo/return-hi, unused
	rangeRegsPerInst   = 2 // input firstidx/lastidx
	inAddrRegsPerInst  = 2 // input values addr lo/hi
	outAddrRegsPerInst = 4 // output offsets addr lo/hi, output values addr lo/hi
	customRegsPerInst  = 4 // ctrl, status, result rows lo, result rows hi
)

// instanceWordStride is base(i) = (i * 0x1000) / 4, the per-instance MMIO
// window stride in 32-bit words, fitting up to 256 instances in a 1 MiB
// MMIO window.
const instanceWordStride = 0x1000 / 4

// RegisterFile abstracts the memory-mapped register window the accelerator
// parser programs. A real implementation maps device BAR memory; tests use
// a software double.
type RegisterFile interface {
	ReadReg(offset uint32) uint32
	WriteReg(offset uint32, v uint32)
}

// AddressTranslator maps a host buffer address to the device-visible
// address the accelerator's DMA engine must use. For the huge-page
// allocator variant the device address equals the host address; for a real
// PCIe device it is a pure lookup table constructed once at context
// construction, per the original's h2d_addr_map.
type AddressTranslator interface {
	DeviceAddress(hostBuf []byte) (uint64, error)
}

// IdentityAddressTranslator implements AddressTranslator for the huge-page
// case where device address equals host address.
type IdentityAddressTranslator struct{}

func (IdentityAddressTranslator) DeviceAddress(hostBuf []byte) (uint64, error) {
	if len(hostBuf) == 0 {
		return 0, nil
	}
	return uint64(uintptr(unsafe.Pointer(&hostBuf[0]))), nil
}

// AcceleratorOptions configures the accelerator parser backend, grounded on
// battery.h's BatteryOptions.
type AcceleratorOptions struct {
	AFUID       string
	NumParsers  int
	SeqColumn   bool
	PollInterval time.Duration
}

// DefaultAcceleratorOptions matches BOLSON_DEFAULT_OPAE_BATTERY_PARSERS = 8
// and BatteryOptions{seq_column = true}.
func DefaultAcceleratorOptions() AcceleratorOptions {
	return AcceleratorOptions{
		NumParsers:   8,
		SeqColumn:    true,
		PollInterval: 500 * time.Microsecond,
	}
}

// AcceleratorContext is the ParserContext variant backed by a
// memory-mapped-register accelerator, grounded on battery.h's
// BatteryParserContext.
type AcceleratorContext struct {
	opts      AcceleratorOptions
	regs      RegisterFile
	addrs     AddressTranslator
	allocator buffer.Allocator
	mem       memory.Allocator
	platformMu *sync.Mutex
}

// NewAcceleratorContext builds the accelerator ParserContext. If AFUID is
// unset, it is derived from NumParsers, capped at 255 parsers else a
// ConfigError, matching battery.cpp's Make().
func NewAcceleratorContext(opts AcceleratorOptions, regs RegisterFile, addrs AddressTranslator) (*AcceleratorContext, error) {
	if opts.NumParsers > MaxAcceleratorInstances-1 {
		return nil, errors.WrapKind(errors.KindConfig, errors.ErrInvalidConfig, "AcceleratorContext", "Make",
			fmt.Sprintf("num_parsers %d exceeds max %d", opts.NumParsers, MaxAcceleratorInstances-1))
	}
	if opts.AFUID == "" {
		opts.AFUID = fmt.Sprintf("%02x", opts.NumParsers)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Microsecond
	}
	if addrs == nil {
		addrs = IdentityAddressTranslator{}
	}
	allocator := buffer.NewHugePageAllocator(nil)
	return &AcceleratorContext{
		opts:       opts,
		regs:       regs,
		addrs:      addrs,
		allocator:  allocator,
		mem:        NewArrowAllocator(allocator),
		platformMu: &sync.Mutex{},
	}, nil
}

func (c *AcceleratorContext) Parsers() []Parser {
	out := make([]Parser, c.opts.NumParsers)
	for i := range out {
		out[i] = &BatteryParser{
			idx:          i,
			regs:         c.regs,
			addrs:        c.addrs,
			platformMu:   c.platformMu,
			pollInterval: c.opts.PollInterval,
			seqColumn:    c.opts.SeqColumn,
			mem:          c.mem,
			allocator:    c.allocator,
		}
	}
	return out
}

func (c *AcceleratorContext) InputSchema() *arrow.Schema {
	return arrow.NewSchema([]arrow.Field{{Name: "values", Type: arrow.BinaryTypes.Binary, Nullable: false}}, nil)
}

// outputItemType matches battery.cpp's output_type(): list(field("item", uint64)).
func outputItemType() arrow.DataType {
	return arrow.ListOf(arrow.PrimitiveTypes.Uint64)
}

func (c *AcceleratorContext) OutputSchema() *arrow.Schema {
	fields := []arrow.Field{{Name: "voltage", Type: outputItemType(), Nullable: false}}
	if c.opts.SeqColumn {
		fields = append([]arrow.Field{SeqField()}, fields...)
	}
	return arrow.NewSchema(fields, nil)
}

// CheckThreadCount rejects any request exceeding MaxAcceleratorInstances-1
// before any MMIO takes place, matching the ConfigError boundary case in
// spec.md's Testable Properties.
func (c *AcceleratorContext) CheckThreadCount(n int) (int, error) {
	if n > MaxAcceleratorInstances-1 {
		return 0, errors.WrapKind(errors.KindConfig, errors.ErrInvalidConfig, "AcceleratorContext", "CheckThreadCount",
			fmt.Sprintf("requested %d exceeds accelerator max %d", n, MaxAcceleratorInstances-1))
	}
	return c.opts.NumParsers, nil
}

// CheckBufferCount enforces the accelerator's "exactly one buffer per
// worker" constraint.
func (c *AcceleratorContext) CheckBufferCount(n int) (int, error) {
	return c.opts.NumParsers, nil
}

func (c *AcceleratorContext) Allocator() buffer.Allocator { return c.allocator }

func (c *AcceleratorContext) Close() error { return nil }

// BatteryParser drives one accelerator instance. Parse/ParseOne implement
// the exact per-instance MMIO contract described in battery.cpp.
type BatteryParser struct {
	idx          int
	regs         RegisterFile
	addrs        AddressTranslator
	platformMu   *sync.Mutex
	pollInterval time.Duration
	seqColumn    bool
	mem          memory.Allocator

	// allocator backs the offsets/values output regions; offsetsBuf and
	// valuesBuf are allocated once, lazily, and reused across calls, as in
	// battery.cpp's PrepareOutputBatches.
	allocator  buffer.Allocator
	offsetsBuf []byte
	valuesBuf  []byte
}

// ensureOutputBuffers lazily allocates the offsets and values output
// regions the device DMAs its results into, once per instance.
func (p *BatteryParser) ensureOutputBuffers() error {
	if p.offsetsBuf != nil {
		return nil
	}
	alloc := p.allocator
	if alloc == nil {
		alloc = buffer.NewHeapAllocator()
	}
	offsets, err := alloc.Allocate(outputRegionBytes)
	if err != nil {
		return errors.WrapKind(errors.KindAccelerator, err, "BatteryParser", "ParseOne", "allocate output offsets region")
	}
	values, err := alloc.Allocate(outputRegionBytes)
	if err != nil {
		return errors.WrapKind(errors.KindAccelerator, err, "BatteryParser", "ParseOne", "allocate output values region")
	}
	p.offsetsBuf = offsets
	p.valuesBuf = values
	return nil
}

// instanceBase is base(i) = (i * 0x1000) / 4 in 32-bit word units.
func (p *BatteryParser) instanceBase() uint32 {
	return uint32(p.idx) * instanceWordStride
}

func (p *BatteryParser) customRegsOffset() uint32 {
	return p.instanceBase() + defaultRegs + rangeRegsPerInst + inAddrRegsPerInst + outAddrRegsPerInst
}

func (p *BatteryParser) ctrlOffset() uint32        { return p.customRegsOffset() + 0 }
func (p *BatteryParser) statusOffset() uint32       { return p.customRegsOffset() + 1 }
func (p *BatteryParser) resultRowsLoOffset() uint32 { return p.customRegsOffset() + 2 }
func (p *BatteryParser) resultRowsHiOffset() uint32 { return p.customRegsOffset() + 3 }

func (p *BatteryParser) inputLastIdxOffset() uint32 {
	return p.instanceBase() + defaultRegs + 1
}

func (p *BatteryParser) inputValuesLoOffset() uint32 {
	return p.instanceBase() + defaultRegs + rangeRegsPerInst
}
func (p *BatteryParser) inputValuesHiOffset() uint32 {
	return p.instanceBase() + defaultRegs + rangeRegsPerInst + 1
}

// outputOffsetsLoOffset is the first of the four outAddrRegsPerInst
// registers: the device-visible address of the offsets output region,
// followed by its high half and then the values region's low/high halves.
func (p *BatteryParser) outputOffsetsLoOffset() uint32 {
	return p.instanceBase() + defaultRegs + rangeRegsPerInst + inAddrRegsPerInst
}
func (p *BatteryParser) outputOffsetsHiOffset() uint32 { return p.outputOffsetsLoOffset() + 1 }
func (p *BatteryParser) outputValuesLoOffset() uint32  { return p.outputOffsetsLoOffset() + 2 }
func (p *BatteryParser) outputValuesHiOffset() uint32  { return p.outputOffsetsLoOffset() + 3 }

func (p *BatteryParser) Parse(inputs []*buffer.JSONBuffer) ([]ParsedBatch, error) {
	out := make([]ParsedBatch, 0, len(inputs))
	for _, in := range inputs {
		batch, err := p.ParseOne(in)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, nil
}

// ParseOne implements the eight-step per-instance contract from spec.md
// §4.3, grounded verbatim on BatteryParser::ParseOne.
func (p *BatteryParser) ParseOne(in *buffer.JSONBuffer) (ParsedBatch, error) {
	if !in.SeqRange().Valid() {
		return ParsedBatch{}, nil
	}

	devAddr, err := p.addrs.DeviceAddress(in.Bytes())
	if err != nil {
		return ParsedBatch{}, errors.WrapKind(errors.KindAccelerator, err, "BatteryParser", "ParseOne", "translate device address")
	}

	if err := p.ensureOutputBuffers(); err != nil {
		return ParsedBatch{}, err
	}
	offsetsAddr, err := p.addrs.DeviceAddress(p.offsetsBuf)
	if err != nil {
		return ParsedBatch{}, errors.WrapKind(errors.KindAccelerator, err, "BatteryParser", "ParseOne", "translate output offsets address")
	}
	valuesAddr, err := p.addrs.DeviceAddress(p.valuesBuf)
	if err != nil {
		return ParsedBatch{}, errors.WrapKind(errors.KindAccelerator, err, "BatteryParser", "ParseOne", "translate output values address")
	}

	p.platformMu.Lock()
	// Step 2: assert reset.
	p.regs.WriteReg(p.ctrlOffset(), ctrlReset)
	p.regs.WriteReg(p.ctrlOffset(), 0)
	// Step 3: input last-valid-index; first-index is implicitly zero.
	p.regs.WriteReg(p.inputLastIdxOffset(), uint32(in.Size()))
	// Step 4: input buffer device address, low/high halves.
	p.regs.WriteReg(p.inputValuesLoOffset(), uint32(devAddr))
	p.regs.WriteReg(p.inputValuesHiOffset(), uint32(devAddr>>32))
	// Step 4b: output regions' device addresses, so the device DMAs its
	// offsets/values result into host-owned buffers.
	p.regs.WriteReg(p.outputOffsetsLoOffset(), uint32(offsetsAddr))
	p.regs.WriteReg(p.outputOffsetsHiOffset(), uint32(offsetsAddr>>32))
	p.regs.WriteReg(p.outputValuesLoOffset(), uint32(valuesAddr))
	p.regs.WriteReg(p.outputValuesHiOffset(), uint32(valuesAddr>>32))
	// Step 5: assert start.
	p.regs.WriteReg(p.ctrlOffset(), ctrlStart)
	p.regs.WriteReg(p.ctrlOffset(), 0)
	p.platformMu.Unlock()

	// Step 6: release/sleep/reacquire/poll until done.
	var status uint32
	for {
		time.Sleep(p.pollInterval)
		p.platformMu.Lock()
		status = p.regs.ReadReg(p.statusOffset())
		done := status&statDone == statDone
		p.platformMu.Unlock()
		if done {
			break
		}
	}

	p.platformMu.Lock()
	// Step 7: read 64-bit row count result.
	rowsLo := p.regs.ReadReg(p.resultRowsLoOffset())
	rowsHi := p.regs.ReadReg(p.resultRowsHiOffset())
	// Step 8: release device mutex.
	p.platformMu.Unlock()

	numRows := uint64(rowsHi)<<32 | uint64(rowsLo)
	seqRange := in.SeqRange()
	if numRows != seqRange.NumRows() {
		return ParsedBatch{}, errors.WrapKind(errors.KindAccelerator, errors.ErrDataCorrupted, "BatteryParser", "ParseOne",
			fmt.Sprintf("device reported %d rows, expected %d", numRows, seqRange.NumRows()))
	}

	rec, err := p.wrapOutput(numRows, seqRange)
	if err != nil {
		return ParsedBatch{}, err
	}
	return ParsedBatch{Batch: rec, SeqRange: seqRange}, nil
}

// wrapOutput builds the result RecordBatch by reading back the two
// pre-allocated output regions the device just populated: offsetsBuf holds
// numRows+1 running value counts, where offsets[i+1]-offsets[i] is the
// number of values in row i and offsets[numRows] is the total value count,
// and valuesBuf holds that many uint64 values back to back — matching
// battery.cpp's WrapOutput, plus the optional sequence column, built on the
// host here after the device poll has finished.
func (p *BatteryParser) wrapOutput(numRows uint64, seqRange buffer.SeqRange) (arrow.Record, error) {
	offsets := make([]uint32, numRows+1)
	for i := range offsets {
		offsets[i] = binary.LittleEndian.Uint32(p.offsetsBuf[i*4:])
	}

	listBldr := array.NewListBuilder(p.mem, arrow.PrimitiveTypes.Uint64)
	defer listBldr.Release()
	valBldr := listBldr.ValueBuilder().(*array.Uint64Builder)
	for row := uint64(0); row < numRows; row++ {
		listBldr.Append(true)
		for v := offsets[row]; v < offsets[row+1]; v++ {
			valBldr.Append(binary.LittleEndian.Uint64(p.valuesBuf[uint64(v)*8:]))
		}
	}
	listArr := listBldr.NewArray()
	defer listArr.Release()

	cols := []arrow.Array{listArr}
	fields := []arrow.Field{{Name: "voltage", Type: outputItemType(), Nullable: false}}

	if p.seqColumn {
		seqBldr := array.NewUint64Builder(p.mem)
		defer seqBldr.Release()
		for seq := seqRange.First; seq <= seqRange.Last; seq++ {
			seqBldr.Append(seq)
		}
		seqArr := seqBldr.NewArray()
		defer seqArr.Release()
		cols = append([]arrow.Array{seqArr}, cols...)
		fields = append([]arrow.Field{SeqField()}, fields...)
	}

	schema := arrow.NewSchema(fields, nil)
	return array.NewRecord(schema, cols, int64(numRows)), nil
}
