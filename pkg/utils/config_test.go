package utils_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"payment-service/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_LoadConfig(t *testing.T) {
	t.Run("Defaults without file", func(t *testing.T) {
		assertions := assert.New(t)

		config, err := utils.LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assertions.Equal("payment-service", config.App.Name)
		assertions.Equal("8082", config.App.Port)
		assertions.Equal(10*time.Second, config.Gateway.Timeout)
		assertions.Equal(5*time.Second, config.Sales.Timeout)
		assertions.Equal("ARS", config.Gateway.Currency)
		assertions.Equal([]string{"http://localhost:4200"}, config.CORS.AllowedOrigins)
		assertions.Empty(config.Kafka.Brokers)
		assertions.Error(config.Validate(), "access token is required")
	})
	t.Run("File and environment", func(t *testing.T) {
		assertions := assert.New(t)

		path := filepath.Join(t.TempDir(), ".env")
		content := "GATEWAY_ACCESS_TOKEN=TEST-123\nAPP_BASE_URL=https://pay.example.com/\nKAFKA_BROKERS=k1:9092, k2:9092\nGATEWAY_TIMEOUT=3s\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

		t.Setenv("SALES_BASE_URL", "http://sales:8081/api/")
		t.Setenv("WORKER_SIZE", "8")

		config, err := utils.LoadConfig(path)
		require.NoError(t, err)

		assertions.Equal("TEST-123", config.Gateway.AccessToken)
		assertions.Equal("https://pay.example.com", config.App.BaseURL)
		assertions.Equal([]string{"k1:9092", "k2:9092"}, config.Kafka.Brokers)
		assertions.Equal(3*time.Second, config.Gateway.Timeout)
		assertions.Equal("http://sales:8081/api", config.Sales.BaseURL)
		assertions.Equal(8, config.Worker.Size)
		assertions.NoError(config.Validate())
	})
}
