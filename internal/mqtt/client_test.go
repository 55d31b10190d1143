package mqtt

import "testing"

func TestBrokerURL(t *testing.T) {
	tests := []struct {
		name       string
		env        string
		configured string
		want       string
	}{
		{name: "default", want: "tcp://localhost:1883"},
		{name: "configured", configured: "tcp://broker:1883", want: "tcp://broker:1883"},
		{name: "env wins", env: "ssl://secure:8883", configured: "tcp://broker:1883", want: "ssl://secure:8883"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MQTT_URL", tt.env)
			if got := BrokerURL(tt.configured); got != tt.want {
				t.Errorf("BrokerURL(%q) = %q, want %q", tt.configured, got, tt.want)
			}
		})
	}
}

func TestTimeoutErrors(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&ConnectTimeoutError{}, "mqtt connect timeout"},
		{&SubscribeTimeoutError{Topic: "reel/sessions/+/input"}, "mqtt subscribe timeout: reel/sessions/+/input"},
		{&PublishTimeoutError{Topic: "reel/sessions/a/frame"}, "mqtt publish timeout: reel/sessions/a/frame"},
	}

	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestClientSatisfiesTransport(t *testing.T) {
	var _ Transport = NewClient("tcp://localhost:1883", "reel-test", 0)
}
