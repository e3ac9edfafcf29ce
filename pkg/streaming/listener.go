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

package streaming

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	natsclient "github.com/laptopstream/laptopstream/pkg/shared/clients/nats"
	"github.com/laptopstream/laptopstream/pkg/shared/logging"
)

const DefaultProgressSubject = "laptopstream.progress"

// Listener is notified of the lifecycle of queries. Callbacks run on the query goroutine and should return quickly.
type Listener interface {
	OnQueryStarted(ctx context.Context, e QueryStartedEvent)
	OnQueryProgress(ctx context.Context, p Progress)
	OnQueryTerminated(ctx context.Context, e QueryTerminatedEvent)
}

// logListener logs the events.
type logListener struct{}

// NewLogListener returns a listener logging every event with the logger of the context.
func NewLogListener() Listener {
	return logListener{}
}

func (logListener) OnQueryStarted(ctx context.Context, e QueryStartedEvent) {
	logging.FromContext(ctx).Infow("Query started", zap.String("query", e.Name), zap.String("id", e.ID), zap.String("runId", e.RunID), zap.String("trigger", e.Trigger))
}

func (logListener) OnQueryProgress(ctx context.Context, p Progress) {
	logging.FromContext(ctx).Infow("Micro-batch completed",
		zap.String("query", p.Name),
		zap.Int64("batchId", p.BatchID),
		zap.Int("files", len(p.Files)),
		zap.Int64("inputRows", p.NumInputRows),
		zap.Int64("outputRows", p.NumOutputRows),
		zap.Int64("filteredRows", p.NumFilteredRows),
		zap.Int64("malformedRows", p.NumMalformedRows),
		zap.Int64("durationMs", p.DurationMs))
}

func (logListener) OnQueryTerminated(ctx context.Context, e QueryTerminatedEvent) {
	log := logging.FromContext(ctx)
	if e.Exception != "" {
		log.Errorw("Query terminated with error", zap.String("query", e.Name), zap.Int64("batches", e.Batches), zap.String("exception", e.Exception))
		return
	}
	log.Infow("Query terminated", zap.String("query", e.Name), zap.Int64("batches", e.Batches))
}

// natsListener publishes the progress of every batch as JSON on "<subject>.<query>", and the termination of a query
// on "<subject>.<query>.terminated".
type natsListener struct {
	client  *natsclient.Client
	subject string
}

// NewNATSListener returns a listener publishing progress with the client.
func NewNATSListener(client *natsclient.Client, subject string) Listener {
	if subject == "" {
		subject = DefaultProgressSubject
	}
	return &natsListener{client: client, subject: subject}
}

func (n *natsListener) OnQueryStarted(context.Context, QueryStartedEvent) {}

func (n *natsListener) OnQueryProgress(ctx context.Context, p Progress) {
	n.publish(ctx, fmt.Sprintf("%s.%s", n.subject, p.Name), p)
}

func (n *natsListener) OnQueryTerminated(ctx context.Context, e QueryTerminatedEvent) {
	n.publish(ctx, fmt.Sprintf("%s.%s.terminated", n.subject, e.Name), e)
}

func (n *natsListener) publish(ctx context.Context, subject string, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.FromContext(ctx).Errorw("Failed to encode event", zap.String("subject", subject), zap.Error(err))
		return
	}
	if err := n.client.Publish(subject, data); err != nil {
		// progress is informational, a lost message does not fail the batch
		logging.FromContext(ctx).Warnw("Failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}
