package kafka

import (
	"github.com/IBM/sarama"
)

// Message is one record to publish. Key selects the partition, so records sharing a key
// keep their relative order.
type Message struct {
	Key   string
	Value []byte
}

type IProducer interface {
	Push(messages []Message) error
	Close() error
}

type producer struct {
	topic string
	conn  sarama.SyncProducer
}

func NewProducer(host string, topic string) (IProducer, error) {
	saramaConf := sarama.NewConfig()
	saramaConf.Producer.Return.Successes = true
	saramaConf.Producer.Return.Errors = true
	saramaConf.Producer.RequiredAcks = sarama.WaitForAll
	saramaConf.Producer.Idempotent = true
	saramaConf.Net.MaxOpenRequests = 1

	conn, err := sarama.NewSyncProducer([]string{host}, saramaConf)
	if err != nil {
		return nil, err
	}

	return &producer{
		conn:  conn,
		topic: topic,
	}, nil
}

func (p *producer) Push(messages []Message) error {
	if len(messages) == 0 {
		return nil
	}
	return p.conn.SendMessages(toKafkaMessages(messages, p.topic))
}

func (p *producer) Close() error {
	return p.conn.Close()
}

func toKafkaMessages(messages []Message, topic string) []*sarama.ProducerMessage {
	res := make([]*sarama.ProducerMessage, 0, len(messages))
	for _, message := range messages {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(message.Value),
		}
		if message.Key != "" {
			msg.Key = sarama.StringEncoder(message.Key)
		}
		res = append(res, msg)
	}
	return res
}
