// Package sqs publica los eventos del log de actividad en una cola SQS
// para consumidores externos (alertas, analítica).
package sqs

import (
	"context"
	"encoding/json"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"breast-screening-service/internal/domain/activity"
)

type Notifier struct {
	client   *sqs.Client
	queueURL string
}

// NewNotifier resuelve la URL de la cola por nombre al arrancar; si la
// cola no existe el servicio falla rápido en vez de perder eventos en
// silencio.
func NewNotifier(ctx context.Context, queueName string) (*Notifier, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := sqs.New(sqs.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
	})

	resp, err := client.GetQueueUrl(ctx, &sqs.GetQueueUrlInput{QueueName: &queueName})
	if err != nil {
		return nil, fmt.Errorf("get queue url %s: %w", queueName, err)
	}

	return &Notifier{
		client:   client,
		queueURL: *resp.QueueUrl,
	}, nil
}

func (n *Notifier) Publish(ctx context.Context, e activity.Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := string(body)
	_, err = n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    &n.queueURL,
		MessageBody: &msg,
	})
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}
