package config

import (
	"encoding/json"
	"log"
	"os"
)

type Configuration struct {
	ApiPort string `json:"api_port"`
	LogPath string `json:"log_path"`
	AppURL  string `json:"app_url"`

	Database string `json:"database"` // "sqlite3" ou "postgres"
	DbHost   string `json:"db_host"`
	DbPort   string `json:"db_port"`
	DbUser   string `json:"db_user"`
	DbName   string `json:"db_name"`
	DbPass   string `json:"db_pass"`

	RedisAddr string `json:"redis_addr"`

	Uazapi struct {
		BaseURL        string `json:"base_url"`
		AdminToken     string `json:"admin_token"`
		WebhookBaseURL string `json:"webhook_base_url"`
	} `json:"uazapi"`

	Stripe struct {
		SecretKey     string `json:"secret_key"`
		WebhookSecret string `json:"webhook_secret"`
		PriceID       string `json:"price_id"`
	} `json:"stripe"`

	Security struct {
		JwtSecret string `json:"jwt_secret"`
	} `json:"security"`
}

func Get(path string) Configuration {
	b, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	var c Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		log.Fatal(err)
	}

	// segredos sempre podem vir do ambiente (deploy não versiona config.json)
	overrideEnv(&c.ApiPort, "API_PORT")
	overrideEnv(&c.AppURL, "APP_URL")
	overrideEnv(&c.RedisAddr, "REDIS_ADDR")
	overrideEnv(&c.Uazapi.BaseURL, "UAZAPI_BASE_URL")
	overrideEnv(&c.Uazapi.AdminToken, "UAZAPI_ADMIN_TOKEN")
	overrideEnv(&c.Uazapi.WebhookBaseURL, "UAZAPI_WEBHOOK_BASE_URL")
	overrideEnv(&c.Stripe.SecretKey, "STRIPE_SECRET_KEY")
	overrideEnv(&c.Stripe.WebhookSecret, "STRIPE_WEBHOOK_SECRET")
	overrideEnv(&c.Stripe.PriceID, "STRIPE_PRICE_ID")
	overrideEnv(&c.Security.JwtSecret, "JWT_SECRET")

	// defaults (pra evitar nil/zero chato)
	if c.ApiPort == "" {
		c.ApiPort = "8080"
	}
	if c.LogPath == "" {
		c.LogPath = "logs/server.log"
	}
	if c.AppURL == "" {
		c.AppURL = "http://localhost:3000"
	}
	if c.Database == "" {
		c.Database = "sqlite3"
	}
	if c.Security.JwtSecret == "" {
		c.Security.JwtSecret = "CHANGE_ME"
	}

	return c
}

func overrideEnv(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
