package config

import (
	"os"
	"strconv"
)

// LoadFromEnv applies environment overrides to cfg. Called once at startup;
// the resulting struct is what gets passed down, never the environment.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("RULE_ENGINE_URL"); v != "" {
		cfg.Services.RuleEngineURL = v
	}
	if v := os.Getenv("RULE_ENGINE_MONITORING_URL"); v != "" {
		cfg.Services.RuleEngineMonitoringURL = v
	}
	if v := os.Getenv("RULE_MGMT_URL"); v != "" {
		cfg.Services.RuleManagementURL = v
	}
	if v := os.Getenv("TRANSACTION_MGMT_URL"); v != "" {
		cfg.Services.TransactionMgmtURL = v
	}
	if v := os.Getenv("OPS_ANALYST_URL"); v != "" {
		cfg.Services.OpsAnalystURL = v
	}

	if v := os.Getenv("S3_ENDPOINT_URL"); v != "" {
		cfg.Storage.Endpoint = v
	} else if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("S3_ACCESS_KEY_ID"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("S3_SECRET_ACCESS_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("S3_BUCKET_NAME"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("MINIO_SECURE"); v != "" {
		cfg.Storage.Secure = v == "true"
	}

	if v := os.Getenv("RULE_ENGINE_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RuleEng.TargetRPS = n
		}
	}
	if v := os.Getenv("RULE_ENGINE_P95_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RuleEng.P95MaxMS = f
		}
	}
	if v := os.Getenv("RULE_ENGINE_P99_MS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RuleEng.P99MaxMS = f
		}
	}
	if v := os.Getenv("RULE_ENGINE_USERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RuleEng.UsersNormal = n
		}
	}
	if v := os.Getenv("RULE_ENGINE_AUTH_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RuleEng.TrafficMix.Auth = f
		}
	}
	if v := os.Getenv("RULE_ENGINE_MONITORING_WEIGHT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RuleEng.TrafficMix.Monitoring = f
		}
	}
	if v := os.Getenv("TRANS_MGMT_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TransMgmt.TargetRPS = n
		}
	}
	if v := os.Getenv("OPS_ANALYST_RPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OpsAgent.TargetRPS = n
		}
	}

	cfg.RuleEng.TrafficMix = cfg.RuleEng.TrafficMix.Normalize()
}
