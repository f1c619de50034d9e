package shared

import "fmt"

// AMQPConfig is the connection and topology configuration shared by both
// binaries' "amqp:" YAML block.
type AMQPConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Exchange          string `mapstructure:"exchange"`
	RoutingKey        string `mapstructure:"routing_key"`
	Queue             string `mapstructure:"queue"`
	ReportsRoutingKey string `mapstructure:"reports_routing_key"`
}

// URL builds the connection string the broker client dials. The vhost is
// always the default ("/"), percent-encoded as required by the AMQP URI
// scheme.
func (c AMQPConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%d/%%2f", c.Host, c.Port)
}
