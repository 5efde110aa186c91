package kafka

import (
	"errors"
	"strings"

	"github.com/segmentio/kafka-go"
)

const DefaultGroupID = "walletcsv-archive"

type ReaderConfig struct {
	Brokers     []string
	GroupID     string
	TopicPrefix string
}

// NewReaders opens one consumer-group reader per chain topic.
func NewReaders(cfg ReaderConfig, chainIDs []string) ([]*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if len(chainIDs) == 0 {
		return nil, errors.New("at least one chain id is required")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		cfg.GroupID = DefaultGroupID
	}
	if strings.TrimSpace(cfg.TopicPrefix) == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}

	readers := make([]*kafka.Reader, 0, len(chainIDs))
	for _, chainID := range chainIDs {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			GroupID:  cfg.GroupID,
			Topic:    TopicForChain(cfg.TopicPrefix, chainID),
			MinBytes: 1,
			MaxBytes: 10e6,
		}))
	}
	return readers, nil
}
