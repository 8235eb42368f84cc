package server_test

import (
	"testing"

	"turnover-sync/core/server"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Addr(t *testing.T) {
	tests := []struct {
		name string
		port string
		want string
	}{
		{"Plain port", "9090", ":9090"},
		{"Leading colon", ":9090", ":9090"},
		{"Empty", "", ":8080"},
		{"Whitespace", " 7000 ", ":7000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := server.Config{Port: tt.port}
			assert.Equal(t, tt.want, c.Addr())
		})
	}
}
