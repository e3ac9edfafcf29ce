/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package nats

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/laptopstream/laptopstream/pkg/shared/logging"
	"github.com/laptopstream/laptopstream/pkg/shared/util"
)

const (
	EnvNatsUser     = "LAPTOPSTREAM_NATS_USER"
	EnvNatsPassword = "LAPTOPSTREAM_NATS_PASSWORD"
)

// Client is a client for NATS server.
type Client struct {
	sync.Mutex
	nc  *nats.Conn
	log *zap.SugaredLogger
}

// NewNATSClient Create a new NATS client
func NewNATSClient(ctx context.Context, url string, natsOptions ...nats.Option) (*Client, error) {
	log := logging.FromContext(ctx)
	opts := []nats.Option{
		// Enable Nats auto reconnect
		// if max reconnects is set to -1, it will try to reconnect forever
		nats.MaxReconnects(-1),
		nats.PingInterval(3 * time.Second),
		// error handler for the connection
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Errorw("Nats default: error occurred for subscription", zap.Error(err))
		}),
		// connection closed handler
		nats.ClosedHandler(func(nc *nats.Conn) {
			log.Info("Nats default: connection closed")
		}),
		// disconnect handler to log when we lose connection
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Errorw("Nats default: disconnected", zap.Error(err))
		}),
		// reconnect handler to log when we reconnect
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("Nats default: reconnected")
		}),
		// Write (and flush) timeout
		nats.FlusherTimeout(10 * time.Second),
		// If the server doesn't respond to 2 pings we will reconnect
		nats.MaxPingsOutstanding(2),
	}
	if user := util.LookupEnvStringOr(EnvNatsUser, ""); user != "" {
		opts = append(opts, nats.UserInfo(user, util.LookupEnvStringOr(EnvNatsPassword, "")))
	}
	opts = append(opts, natsOptions...)
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats url=%s: %w", url, err)
	}
	return &Client{nc: nc, log: log}, nil
}

// Publish publishes the data on the subject.
func (c *Client) Publish(subject string, data []byte) error {
	return c.nc.Publish(subject, data)
}

// Subscribe subscribes to the subject, messages are delivered to the channel.
func (c *Client) Subscribe(subject string, ch chan *nats.Msg) (*nats.Subscription, error) {
	return c.nc.ChanSubscribe(subject, ch)
}

// Flush waits until the published messages are processed by the server.
func (c *Client) Flush() error {
	return c.nc.Flush()
}

// IsConnected tells whether the connection is up.
func (c *Client) IsConnected() bool {
	return c.nc.IsConnected()
}

// Close closes the NATS client
func (c *Client) Close() {
	c.nc.Close()
}

// NewTestClient creates a new NATS client for testing
// only use this for testing
func NewTestClient(t *testing.T, url string) *Client {
	nc, err := nats.Connect(url)
	if err != nil {
		panic(err)
	}
	return &Client{nc: nc, log: logging.NewNopLogger()}
}

// NewTestClientWithServer is used to get a testing client instance
func NewTestClientWithServer(t *testing.T, s *server.Server) *Client {
	return NewTestClient(t, s.ClientURL())
}
