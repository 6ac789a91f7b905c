package feed

import (
	"context"
	"fmt"

	"github.com/voxelmind/go-perception/internal/evidence"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// #region client

// Client is the sensor layer's handle to the feed endpoint.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient connects to a feed server.
func NewClient(addr string) (*Client, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// PushBatch sends one evidence batch.
func (c *Client) PushBatch(ctx context.Context, batch evidence.Batch) (*PushBatchResponse, error) {
	return c.push(ctx, &PushBatchRequest{Batch: batch})
}

// PushBatchWithRaw sends one evidence batch alongside legacy raw
// detections. Whether the raw detections go anywhere is the server's
// decision, not the sender's.
func (c *Client) PushBatchWithRaw(ctx context.Context, batch evidence.Batch, raw []RawDetection) (*PushBatchResponse, error) {
	return c.push(ctx, &PushBatchRequest{Batch: batch, Raw: raw})
}

func (c *Client) push(ctx context.Context, req *PushBatchRequest) (*PushBatchResponse, error) {
	resp := new(PushBatchResponse)
	if err := c.conn.Invoke(ctx, "/"+serviceName+"/PushBatch", req, resp); err != nil {
		return nil, fmt.Errorf("push batch tick %d: %w", req.Batch.TickID, err)
	}
	return resp, nil
}

// #endregion client
