package storageHandler

import (
	"errors"
	"io"
	"net/url"
	"strconv"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"drive-service/internal/service/storageService"
	"drive-service/pkg/logger"
)

// Upload and download metadata headers. File names are query-escaped.
const (
	HeaderFileName    = "x-file-name"
	HeaderFileSize    = "x-file-size"
	HeaderFolderID    = "x-folder-id"
	HeaderContentType = "x-content-type"
	HeaderChecksum    = "x-checksum"
	HeaderFileID      = "x-file-id"
)

const chunkSize = 32 * 1024

// chunkReader reads the BytesValue messages of a client stream.
type chunkReader struct {
	stream grpc.ServerStream
	buf    []byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		msg := new(wrapperspb.BytesValue)
		if err := c.stream.RecvMsg(msg); err != nil {
			return 0, err
		}
		c.buf = msg.GetValue()
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func firstHeader(md metadata.MD, key string) string {
	if v := md.Get(key); len(v) > 0 {
		return v[0]
	}
	return ""
}

func uploadRequest(md metadata.MD) (storageService.UploadRequest, error) {
	var req storageService.UploadRequest

	name, err := url.QueryUnescape(firstHeader(md, HeaderFileName))
	if err != nil || name == "" {
		return req, status.Error(codes.InvalidArgument, HeaderFileName+" header is required")
	}
	size, err := strconv.ParseInt(firstHeader(md, HeaderFileSize), 10, 64)
	if err != nil || size < 0 {
		return req, status.Error(codes.InvalidArgument, HeaderFileSize+" header must be a byte count")
	}
	if req.FolderID, err = optionalID(HeaderFolderID, firstHeader(md, HeaderFolderID)); err != nil {
		return req, err
	}
	req.Name = name
	req.Size = size
	req.ContentType = firstHeader(md, HeaderContentType)
	return req, nil
}

// Upload reads the file metadata from the request headers and its content
// from a stream of BytesValue chunks, then replies with the file record.
func (h *StorageHandler) Upload(stream grpc.ServerStream) error {
	ctx := stream.Context()
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	md, _ := metadata.FromIncomingContext(ctx)
	req, err := uploadRequest(md)
	if err != nil {
		return err
	}
	req.Content = &chunkReader{stream: stream}

	f, err := h.storage.Upload(ctx, id, req)
	if err != nil {
		return toStatus(ctx, err)
	}
	out, err := respond(fileMap(f))
	if err != nil {
		return err
	}
	return stream.SendMsg(out)
}

// Download sends the file metadata as response headers and the content as
// BytesValue chunks.
func (h *StorageHandler) Download(in *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	var req idRequest
	if err := h.decode(in, &req); err != nil {
		return err
	}
	fileID, err := parseID("id", req.ID)
	if err != nil {
		return err
	}
	content, f, err := h.storage.Download(ctx, id, fileID)
	if err != nil {
		return toStatus(ctx, err)
	}
	defer content.Close()

	header := metadata.Pairs(
		HeaderFileID, f.ID.String(),
		HeaderFileName, url.QueryEscape(f.Name),
		HeaderFileSize, strconv.FormatInt(f.Size, 10),
		HeaderContentType, f.ContentType,
		HeaderChecksum, f.Checksum,
	)
	if err := stream.SendHeader(header); err != nil {
		return err
	}

	buf := make([]byte, chunkSize)
	for {
		n, readErr := content.Read(buf)
		if n > 0 {
			if err := stream.SendMsg(wrapperspb.Bytes(buf[:n])); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			return nil
		}
		if readErr != nil {
			logger.GetLogger(ctx).Error("blob read failed", zap.Stringer("file_id", f.ID), zap.Error(readErr))
			return status.Error(codes.Unavailable, "read file content")
		}
	}
}
