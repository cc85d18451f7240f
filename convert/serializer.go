package convert

import (
	"bytes"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/SigmaX-ai/bolson/errors"
)

// Serializer encodes a ResizedBatch into the bus's message bytes using the
// Arrow IPC stream format. Grounded on
// original_source/src/bolson/convert/serializer.cpp.
type Serializer struct {
	MaxIPCSize int
	mem        memory.Allocator
}

// NewSerializer returns a Serializer rejecting output above maxIPCSize
// bytes.
func NewSerializer(maxIPCSize int, mem memory.Allocator) Serializer {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	return Serializer{MaxIPCSize: maxIPCSize, mem: mem}
}

// Serialize encodes in.Batch as a schema-prefixed Arrow IPC RecordBatch
// message. Returns an EncodeError ("maximum IPC message size exceeded (N > M
// bytes). Reduce max number of rows per batch", after serializer.cpp's error
// text) if the encoded size exceeds MaxIPCSize. The Resizer caps rows only,
// so this check is where the size ceiling is enforced; the error is fatal to
// this batch.
func (s Serializer) Serialize(in ResizedBatch) (SerializedBatch, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(in.Batch.Schema()), ipc.WithAllocator(s.mem))
	if err := w.Write(in.Batch); err != nil {
		return SerializedBatch{}, errors.WrapKind(errors.KindEncode, err, "Serializer", "Serialize", "write IPC record batch")
	}
	if err := w.Close(); err != nil {
		return SerializedBatch{}, errors.WrapKind(errors.KindEncode, err, "Serializer", "Serialize", "close IPC writer")
	}

	if s.MaxIPCSize > 0 && buf.Len() > s.MaxIPCSize {
		return SerializedBatch{}, errors.WrapKind(errors.KindEncode,
			fmt.Errorf("maximum IPC message size exceeded (%d > %d bytes). Reduce max number of rows per batch", buf.Len(), s.MaxIPCSize),
			"Serializer", "Serialize", "check message size ceiling")
	}

	return SerializedBatch{Message: buf.Bytes(), SeqRange: in.SeqRange}, nil
}

// MockSerializer produces empty buffers for a given row count, for use in
// `bench convert --parse-only`-style harnesses, matching serializer.cpp's
// SerializerMock.
type MockSerializer struct{}

func (MockSerializer) Serialize(in ResizedBatch) (SerializedBatch, error) {
	return SerializedBatch{Message: nil, SeqRange: in.SeqRange}, nil
}
