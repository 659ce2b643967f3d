package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/progression-engine/internal/api"
)

// #region client-struct

// Client calls a remote Progression service.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor

// NewClient connects to the Progression service at addr. opts are appended
// after the insecure transport credentials.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn wraps an existing connection. Close does not close cc.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close

// Close shuts down the connection opened by NewClient.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls

// Award commits one award remotely.
func (c *Client) Award(ctx context.Context, req api.AwardRequest) (api.AwardResponse, error) {
	var out api.AwardResponse
	if err := c.call(ctx, methodAwardXP, req, &out); err != nil {
		return api.AwardResponse{}, fmt.Errorf("award rpc: %w", err)
	}
	return out, nil
}

// State fetches a user's snapshot.
func (c *Client) State(ctx context.Context, userID string) (api.StateResponse, error) {
	var out api.StateResponse
	if err := c.call(ctx, methodGetState, api.UserRequest{UserID: userID}, &out); err != nil {
		return api.StateResponse{}, fmt.Errorf("state rpc: %w", err)
	}
	return out, nil
}

// Ledger fetches up to limit recent ledger entries.
func (c *Client) Ledger(ctx context.Context, userID string, limit int) (api.LedgerResponse, error) {
	var out api.LedgerResponse
	if err := c.call(ctx, methodListLedger, api.UserRequest{UserID: userID, Limit: limit}, &out); err != nil {
		return api.LedgerResponse{}, fmt.Errorf("ledger rpc: %w", err)
	}
	return out, nil
}

// Reconcile asks the service to check ledger drift.
func (c *Client) Reconcile(ctx context.Context, userID string) (api.ReconcileResponse, error) {
	var out api.ReconcileResponse
	if err := c.call(ctx, methodReconcile, api.UserRequest{UserID: userID}, &out); err != nil {
		return api.ReconcileResponse{}, fmt.Errorf("reconcile rpc: %w", err)
	}
	return out, nil
}

func (c *Client) call(ctx context.Context, method string, in, out any) error {
	req, err := toStruct(in)
	if err != nil {
		return err
	}
	resp := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, resp); err != nil {
		return err
	}
	return fromStruct(resp, out)
}

// #endregion calls
