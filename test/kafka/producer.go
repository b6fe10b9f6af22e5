// этот код не зависит от приложения,
// и нужен только для ручной проверки приёма заказов через кафку
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/segmentio/kafka-go"
)

func main() {
	// конфигурация из config.yaml
	brokerAddress := "localhost:9092"
	topic := "order-requests"

	// JSON-сообщение: заказ киоска
	message := `{
           "lines": [
             { "name": "Blue Special Burger", "quantity": 2 },
             { "name": "Peri Peri Fries", "quantity": 1 }
           ],
           "dining_type": "Takeaway"
        }`

	// настройки писателя (producer-а)
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokerAddress),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{},
	}
	defer writer.Close()

	log.Println("Sending order request to Kafka...")
	err := writer.WriteMessages(context.Background(),
		kafka.Message{
			Key:   []byte("kiosk-1"),
			Value: []byte(message),
		},
	)
	if err != nil {
		log.Fatalf("Failed to write message: %v", err)
	}

	fmt.Println("Order request sent successfully!")
}
