package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery/storage/apiv1/storagepb"
	"cloud.google.com/go/bigquery/storage/managedwriter"
	"cloud.google.com/go/bigquery/storage/managedwriter/adapt"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/rickgao/financemonitor/internal/model"
)

// Streamer commits rows through a transactional streaming API.
type Streamer interface {
	WriteStream(ctx context.Context, table string, records []model.StreamRecord) (int64, error)
}

var _ Streamer = (*BigQuery)(nil)

const streamRowMessage = "StreamRow"

// streamRowDescriptor describes model.StreamRecord as a proto2 message whose
// field names match the destination columns.
func streamRowDescriptor() (protoreflect.MessageDescriptor, error) {
	field := func(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
		return &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(name),
			Number: proto.Int32(num),
			Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
			Type:   typ.Enum(),
		}
	}

	fdp := &descriptorpb.FileDescriptorProto{
		Name:   proto.String("financemonitor_stream_row.proto"),
		Syntax: proto.String("proto2"),
		MessageType: []*descriptorpb.DescriptorProto{{
			Name: proto.String(streamRowMessage),
			Field: []*descriptorpb.FieldDescriptorProto{
				field("symbol", 1, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				field("value", 2, descriptorpb.FieldDescriptorProto_TYPE_DOUBLE),
				field("datetime", 3, descriptorpb.FieldDescriptorProto_TYPE_STRING),
				field("market", 4, descriptorpb.FieldDescriptorProto_TYPE_STRING),
			},
		}},
	}

	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		return nil, fmt.Errorf("build stream row descriptor: %w", err)
	}
	return fd.Messages().ByName(streamRowMessage), nil
}

// encodeStreamRows serializes records with the stream row descriptor.
func encodeStreamRows(md protoreflect.MessageDescriptor, records []model.StreamRecord) ([][]byte, error) {
	fields := md.Fields()
	symbol := fields.ByName("symbol")
	value := fields.ByName("value")
	datetime := fields.ByName("datetime")
	market := fields.ByName("market")

	rows := make([][]byte, 0, len(records))
	for _, r := range records {
		msg := dynamicpb.NewMessage(md)
		msg.Set(symbol, protoreflect.ValueOfString(r.Symbol))
		msg.Set(value, protoreflect.ValueOfFloat64(r.Value))
		msg.Set(datetime, protoreflect.ValueOfString(r.DateTime))
		msg.Set(market, protoreflect.ValueOfString(r.Market))

		b, err := proto.Marshal(msg)
		if err != nil {
			return nil, fmt.Errorf("marshal row %s: %w", r.Symbol, err)
		}
		rows = append(rows, b)
	}
	return rows, nil
}

func (b *BigQuery) streamClient(ctx context.Context) (*managedwriter.Client, error) {
	b.streamMu.Lock()
	defer b.streamMu.Unlock()

	if b.stream == nil {
		c, err := managedwriter.NewClient(ctx, b.project, b.opts...)
		if err != nil {
			return nil, fmt.Errorf("create storage write client: %w", err)
		}
		b.stream = c
	}
	return b.stream, nil
}

// WriteStream appends records to a pending write stream and commits them
// atomically: either every row becomes visible or none does.
func (b *BigQuery) WriteStream(ctx context.Context, table string, records []model.StreamRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	client, err := b.streamClient(ctx)
	if err != nil {
		return 0, err
	}

	md, err := streamRowDescriptor()
	if err != nil {
		return 0, err
	}
	dp, err := adapt.NormalizeDescriptor(md)
	if err != nil {
		return 0, fmt.Errorf("normalize descriptor: %w", err)
	}
	rows, err := encodeStreamRows(md, records)
	if err != nil {
		return 0, err
	}

	ds, t := splitTable(table, b.dataset)
	parent := managedwriter.TableParentFromParts(b.project, ds, t)

	ms, err := client.NewManagedStream(ctx,
		managedwriter.WithDestinationTable(parent),
		managedwriter.WithType(managedwriter.PendingStream),
		managedwriter.WithSchemaDescriptor(dp),
	)
	if err != nil {
		return 0, fmt.Errorf("create pending stream on %s: %w", parent, err)
	}
	defer ms.Close()

	b.logger.Info("created pending write stream", "stream", ms.StreamName(), "rows", len(rows))

	if err := b.appendAll(ctx, ms, rows); err != nil {
		// A finalized stream is never committed, so nothing becomes visible.
		if _, ferr := ms.Finalize(ctx); ferr != nil {
			b.logger.Warn("failed to finalize stream after error", "stream", ms.StreamName(), "error", ferr)
		}
		return 0, err
	}

	count, err := ms.Finalize(ctx)
	if err != nil {
		return 0, fmt.Errorf("finalize stream: %w", err)
	}

	resp, err := client.BatchCommitWriteStreams(ctx, &storagepb.BatchCommitWriteStreamsRequest{
		Parent:       parent,
		WriteStreams: []string{ms.StreamName()},
	})
	if err != nil {
		return 0, fmt.Errorf("batch commit: %w", err)
	}
	if serrs := resp.GetStreamErrors(); len(serrs) > 0 {
		msgs := make([]string, len(serrs))
		for i, se := range serrs {
			msgs[i] = se.GetEntity() + ": " + se.GetErrorMessage()
		}
		return 0, errors.New("batch commit stream errors: " + strings.Join(msgs, "; "))
	}

	b.logger.Info("committed write stream",
		"stream", ms.StreamName(),
		"rows", count,
		"commit_time", resp.GetCommitTime().AsTime(),
	)
	return count, nil
}

func (b *BigQuery) appendAll(ctx context.Context, ms *managedwriter.ManagedStream, rows [][]byte) error {
	result, err := ms.AppendRows(ctx, rows)
	if err != nil {
		return fmt.Errorf("append rows: %w", err)
	}
	if _, err := result.GetResult(ctx); err != nil {
		return fmt.Errorf("append result: %w", err)
	}
	return nil
}
