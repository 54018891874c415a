package storageHandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls drive.v1.Storage over an existing connection.
type Client struct {
	conn  grpc.ClientConnInterface
	token string
}

func NewClient(conn grpc.ClientConnInterface, token string) *Client {
	return &Client{conn: conn, token: token}
}

// WithToken returns a client that authenticates as another account.
func (c *Client) WithToken(token string) *Client {
	return &Client{conn: c.conn, token: token}
}

func (c *Client) outgoing(ctx context.Context, kv ...string) context.Context {
	if c.token != "" {
		kv = append(kv, "authorization", "Bearer "+c.token)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// Call invokes a unary method by name.
func (c *Client) Call(ctx context.Context, method string, req map[string]interface{}) (map[string]interface{}, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(c.outgoing(ctx), FullMethod(method), in, out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

type UploadFile struct {
	Name        string
	FolderID    string
	ContentType string
	Size        int64
	Content     io.Reader
}

func (c *Client) Upload(ctx context.Context, f UploadFile) (map[string]interface{}, error) {
	kv := []string{
		HeaderFileName, url.QueryEscape(f.Name),
		HeaderFileSize, strconv.FormatInt(f.Size, 10),
		HeaderContentType, f.ContentType,
	}
	if f.FolderID != "" {
		kv = append(kv, HeaderFolderID, f.FolderID)
	}
	desc := &Storage_ServiceDesc.Streams[0]
	stream, err := c.conn.NewStream(c.outgoing(ctx, kv...), desc, FullMethod(desc.StreamName))
	if err != nil {
		return nil, err
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := f.Content.Read(buf)
		if n > 0 {
			err := stream.SendMsg(wrapperspb.Bytes(buf[:n]))
			if errors.Is(err, io.EOF) {
				// The server already answered; its status comes from RecvMsg.
				break
			}
			if err != nil {
				return nil, err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read upload content: %w", readErr)
		}
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := stream.RecvMsg(out); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

// Download writes the file content to w and returns the metadata headers.
func (c *Client) Download(ctx context.Context, fileID string, w io.Writer) (metadata.MD, error) {
	desc := &Storage_ServiceDesc.Streams[1]
	stream, err := c.conn.NewStream(c.outgoing(ctx), desc, FullMethod(desc.StreamName))
	if err != nil {
		return nil, err
	}
	in, err := structpb.NewStruct(map[string]interface{}{"id": fileID})
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	for {
		chunk := new(wrapperspb.BytesValue)
		err := stream.RecvMsg(chunk)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(chunk.GetValue()); err != nil {
			return nil, fmt.Errorf("write download content: %w", err)
		}
	}
	return stream.Header()
}
