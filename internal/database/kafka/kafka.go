package kafka

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ikaraev-code/Intelligent-archive-02-22/internal/config"
)

// Client holds the writer and reader for the index-job topic.
type Client struct {
	Writer *kafka.Writer
	Reader *kafka.Reader
	Config *config.KafkaConfig
}

var (
	client  *Client
	once    sync.Once
	initErr error
)

// GetClient initializes and returns the Kafka client singleton. On first use
// it ensures the index topic exists.
func GetClient(cfg *config.KafkaConfig) (*Client, error) {
	once.Do(func() {
		if len(cfg.Brokers) == 0 {
			initErr = fmt.Errorf("no Kafka brokers configured")
			return
		}
		if cfg.IndexTopic == "" {
			initErr = fmt.Errorf("no Kafka index topic configured")
			return
		}

		conn, err := kafka.Dial("tcp", cfg.Brokers[0])
		if err != nil {
			initErr = fmt.Errorf("failed to dial Kafka: %w", err)
			return
		}
		defer conn.Close()

		partitions, err := conn.ReadPartitions()
		if err != nil {
			initErr = fmt.Errorf("failed to read Kafka partitions: %w", err)
			return
		}
		exists := false
		for _, p := range partitions {
			if p.Topic == cfg.IndexTopic {
				exists = true
				break
			}
		}
		if !exists {
			log.Printf("topic %q does not exist, creating it", cfg.IndexTopic)
			err = conn.CreateTopics(kafka.TopicConfig{
				Topic:             cfg.IndexTopic,
				NumPartitions:     1,
				ReplicationFactor: 1,
			})
			if err != nil {
				initErr = fmt.Errorf("failed to create Kafka topic: %w", err)
				return
			}
		}

		groupID := cfg.GroupID
		if groupID == "" {
			groupID = "archive-indexer"
		}

		writer := &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.IndexTopic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		}
		reader := kafka.NewReader(kafka.ReaderConfig{
			Brokers: cfg.Brokers,
			Topic:   cfg.IndexTopic,
			GroupID: groupID,
			Dialer:  &kafka.Dialer{Timeout: 10 * time.Second},
		})

		log.Println("connected to Kafka")
		client = &Client{Writer: writer, Reader: reader, Config: cfg}
	})

	return client, initErr
}

// Close shuts down the writer and reader.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.Writer != nil {
		if err := c.Writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka writer: %w", err))
		}
	}
	if c.Reader != nil {
		if err := c.Reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close Kafka reader: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
