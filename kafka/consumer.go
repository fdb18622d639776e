package kafka

import (
	"github.com/IBM/sarama"
)

type IConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type consumer struct {
	sarama.PartitionConsumer
	conn sarama.Consumer
}

func NewConsumer(host string, topic string) (IConsumer, error) {
	config := sarama.NewConfig()
	config.Consumer.Return.Errors = true
	conn, err := sarama.NewConsumer([]string{host}, config)
	if err != nil {
		return nil, err
	}

	partitionConn, err := conn.ConsumePartition(topic, 0, sarama.OffsetOldest)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &consumer{PartitionConsumer: partitionConn, conn: conn}, nil
}

func (c *consumer) Close() error {
	if err := c.PartitionConsumer.Close(); err != nil {
		_ = c.conn.Close()
		return err
	}
	return c.conn.Close()
}
