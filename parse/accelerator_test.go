package parse

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SigmaX-ai/bolson/buffer"
)

// fakeRegisterFile is a software double for a memory-mapped register window:
// writing ctrlStart to the instance's ctrl register immediately populates
// p's offsets/values output regions with rowValues, flips its status
// register to done, and publishes the row count, simulating an accelerator
// that completes synchronously.
type fakeRegisterFile struct {
	mu     sync.Mutex
	regs   map[uint32]uint32
	p      *BatteryParser
	rows   [][]uint64
	ctrl   uint32
	stat   uint32
	rlo    uint32
	rhi    uint32
}

func newFakeRegisterFile(p *BatteryParser, rows [][]uint64) *fakeRegisterFile {
	return &fakeRegisterFile{
		regs: make(map[uint32]uint32),
		p:    p,
		rows: rows,
		ctrl: p.ctrlOffset(),
		stat: p.statusOffset(),
		rlo:  p.resultRowsLoOffset(),
		rhi:  p.resultRowsHiOffset(),
	}
}

func (f *fakeRegisterFile) ReadReg(offset uint32) uint32 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[offset]
}

func (f *fakeRegisterFile) WriteReg(offset uint32, v uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[offset] = v
	if offset == f.ctrl && v == ctrlStart {
		f.populateOutput()
		numRows := uint64(len(f.rows))
		f.regs[f.stat] = statDone
		f.regs[f.rlo] = uint32(numRows)
		f.regs[f.rhi] = uint32(numRows >> 32)
	}
}

// populateOutput writes offsets/values into the parser's output regions
// exactly as the real device would: offsets[i] is the running value count
// before row i, and offsets[len(rows)] is the total value count.
func (f *fakeRegisterFile) populateOutput() {
	running := uint32(0)
	for i, row := range f.rows {
		binary.LittleEndian.PutUint32(f.p.offsetsBuf[i*4:], running)
		for _, v := range row {
			binary.LittleEndian.PutUint64(f.p.valuesBuf[uint64(running)*8:], v)
			running++
		}
	}
	binary.LittleEndian.PutUint32(f.p.offsetsBuf[len(f.rows)*4:], running)
}

func TestBatteryParser_ParseOne_MatchesSeqRange(t *testing.T) {
	p := &BatteryParser{
		idx:          0,
		addrs:        IdentityAddressTranslator{},
		platformMu:   &sync.Mutex{},
		pollInterval: time.Microsecond,
		seqColumn:    true,
		mem:          memory.NewGoAllocator(),
	}
	p.regs = newFakeRegisterFile(p, [][]uint64{{10}, {20}, {30}})

	in := buffer.NewJSONBuffer(64)
	in.Fill([]byte(`{"voltage":1}{"voltage":2}{"voltage":3}`), buffer.NewSeqRange(10, 12))

	batch, err := p.ParseOne(in)
	require.NoError(t, err)
	require.NotNil(t, batch.Batch)
	defer batch.Batch.Release()

	assert.Equal(t, buffer.NewSeqRange(10, 12), batch.SeqRange)
	assert.Equal(t, int64(3), batch.Batch.NumRows())
	assert.Equal(t, "seq", batch.Batch.Schema().Field(0).Name)

	voltage, ok := batch.Batch.Column(1).(interface{ ListValues() arrow.Array })
	require.True(t, ok, "voltage column should be a list array")
	values, ok := voltage.ListValues().(interface{ Value(int) uint64 })
	require.True(t, ok, "list values should be a uint64 array")
	assert.Equal(t, uint64(10), values.Value(0))
	assert.Equal(t, uint64(20), values.Value(1))
	assert.Equal(t, uint64(30), values.Value(2), "list values must come from the device-populated output regions, not placeholder zeros")
}

func TestBatteryParser_ParseOne_RowCountMismatchIsAcceleratorError(t *testing.T) {
	p := &BatteryParser{
		idx:          0,
		addrs:        IdentityAddressTranslator{},
		platformMu:   &sync.Mutex{},
		pollInterval: time.Microsecond,
		seqColumn:    false,
		mem:          memory.NewGoAllocator(),
	}
	p.regs = newFakeRegisterFile(p, [][]uint64{{1}, {2}}) // device reports 2 rows

	in := buffer.NewJSONBuffer(64)
	in.Fill([]byte(`{"voltage":1}{"voltage":2}{"voltage":3}`), buffer.NewSeqRange(0, 2)) // expects 3 rows

	_, err := p.ParseOne(in)
	require.Error(t, err)
}

func TestBatteryParser_ParseOne_EmptySeqRangeSkipsDevice(t *testing.T) {
	p := &BatteryParser{
		idx:          0,
		regs:         nil, // never touched: an invalid SeqRange short-circuits before any MMIO
		addrs:        IdentityAddressTranslator{},
		platformMu:   &sync.Mutex{},
		pollInterval: time.Microsecond,
		mem:          memory.NewGoAllocator(),
	}
	in := buffer.NewJSONBuffer(8)

	batch, err := p.ParseOne(in)
	require.NoError(t, err)
	assert.Nil(t, batch.Batch)
}

func TestAcceleratorContext_CheckThreadCountRejectsOverLimit(t *testing.T) {
	ctx, err := NewAcceleratorContext(AcceleratorOptions{NumParsers: 4}, nil, IdentityAddressTranslator{})
	require.NoError(t, err)
	defer ctx.Close()

	_, err = ctx.CheckThreadCount(MaxAcceleratorInstances)
	require.Error(t, err)

	n, err := ctx.CheckThreadCount(4)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestNewAcceleratorContext_RejectsTooManyParsers(t *testing.T) {
	_, err := NewAcceleratorContext(AcceleratorOptions{NumParsers: MaxAcceleratorInstances}, nil, IdentityAddressTranslator{})
	require.Error(t, err)
}
