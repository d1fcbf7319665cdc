package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	ENV_PREFIX = "QUICKBOOKS_CONNECTOR"

	URL_APP_NAME                   = "URL_App_Name"
	URL_PATH_PREFIX                = "URL_Path_Prefix"
	URL_BASE_PATH                  = "URL_Base_Path"
	HTTP_SHUTDOWN_TIMEOUT          = "HTTP_Shutdown_Timeout"
	SERVICE_TO_SERVICE_CREDENTIALS = "Service_To_Service_Credentials"
	JWT_SIGNING_KEY                = "Jwt_Signing_Key"
	PROFILE                        = "Enable_Profile"

	CONNECTION_DATABASE_IMPL          = "Connection_Database_Impl"
	CONNECTION_DATABASE_HOST          = "Connection_Database_Host"
	CONNECTION_DATABASE_PORT          = "Connection_Database_Port"
	CONNECTION_DATABASE_USER          = "Connection_Database_User"
	CONNECTION_DATABASE_PASSWORD      = "Connection_Database_Password"
	CONNECTION_DATABASE_NAME          = "Connection_Database_Name"
	CONNECTION_DATABASE_SSL_MODE      = "Connection_Database_SSL_Mode"
	CONNECTION_DATABASE_SSL_ROOT_CERT = "Connection_Database_SSL_Root_Cert"
	CONNECTION_DATABASE_QUERY_TIMEOUT = "Connection_Database_Query_Timeout"

	OAUTH_CLIENT_ID        = "OAuth_Client_Id"
	OAUTH_CLIENT_SECRET    = "OAuth_Client_Secret"
	OAUTH_TOKEN_URL        = "OAuth_Token_Url"
	TOKEN_EXCHANGE_TIMEOUT = "Token_Exchange_Timeout"

	QBO_API_BASE_URL     = "QBO_Api_Base_Url"
	QBO_MINOR_VERSION    = "QBO_Minor_Version"
	ENTITY_FETCH_TIMEOUT = "Entity_Fetch_Timeout"

	TOKEN_REFRESH_BUFFER      = "Token_Refresh_Buffer"
	SCHEDULER_INTERVAL        = "Scheduler_Interval"
	SCHEDULER_ALERT_THRESHOLD = "Scheduler_Alert_Threshold"

	WEBHOOK_VERIFIER_TOKEN = "Webhook_Verifier_Token"

	CONNECTION_CACHE_TTL  = "Connection_Cache_TTL"
	CONNECTION_CACHE_SIZE = "Connection_Cache_Size"

	SYNC_DISPATCH_IMPL     = "Sync_Dispatch_Impl"
	BROKERS                = "Kafka_Brokers"
	SYNC_TOPIC             = "Kafka_Sync_Topic"
	SYNC_GROUP_ID          = "Kafka_Sync_Group_Id"
	SYNC_BATCH_SIZE        = "Kafka_Sync_Batch_Size"
	SYNC_BATCH_BYTES       = "Kafka_Sync_Batch_Bytes"
	KAFKA_USERNAME         = "Kafka_Username"
	KAFKA_PASSWORD         = "Kafka_Password"
	KAFKA_SASL_MECHANISM   = "Kafka_SASL_Mechanism"
	KAFKA_CA               = "Kafka_CA"
	DEFAULT_BROKER_ADDRESS = "kafka:29092"

	PAYLOAD_ARCHIVER_IMPL  = "Payload_Archiver_Impl"
	PAYLOAD_ARCHIVE_BUCKET = "Payload_Archive_Bucket"
	AWS_REGION             = "AWS_Region"
)

type Config struct {
	UrlAppName                     string
	UrlPathPrefix                  string
	UrlBasePath                    string
	HttpShutdownTimeout            time.Duration
	ServiceToServiceCredentials    map[string]interface{}
	JwtSigningKey                  string
	Profile                        bool
	ConnectionDatabaseImpl         string
	ConnectionDatabaseHost         string
	ConnectionDatabasePort         int
	ConnectionDatabaseUser         string
	ConnectionDatabasePassword     string
	ConnectionDatabaseName         string
	ConnectionDatabaseSslMode      string
	ConnectionDatabaseSslRootCert  string
	ConnectionDatabaseQueryTimeout time.Duration
	OAuthClientId                  string
	OAuthClientSecret              string
	OAuthTokenUrl                  string
	TokenExchangeTimeout           time.Duration
	QboApiBaseUrl                  string
	QboMinorVersion                string
	EntityFetchTimeout             time.Duration
	TokenRefreshBuffer             time.Duration
	SchedulerInterval              time.Duration
	SchedulerAlertThreshold        int
	WebhookVerifierToken           string
	ConnectionCacheTTL             time.Duration
	ConnectionCacheSize            int
	SyncDispatchImpl               string
	KafkaBrokers                   []string
	KafkaSyncTopic                 string
	KafkaSyncGroupID               string
	KafkaSyncBatchSize             int
	KafkaSyncBatchBytes            int
	KafkaUsername                  string
	KafkaPassword                  string
	KafkaSASLMechanism             string
	KafkaCA                        string
	PayloadArchiverImpl            string
	PayloadArchiveBucket           string
	AwsRegion                      string
}

func (c Config) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", URL_PATH_PREFIX, c.UrlPathPrefix)
	fmt.Fprintf(&b, "%s: %s\n", URL_APP_NAME, c.UrlAppName)
	fmt.Fprintf(&b, "%s: %s\n", URL_BASE_PATH, c.UrlBasePath)
	fmt.Fprintf(&b, "%s: %s\n", HTTP_SHUTDOWN_TIMEOUT, c.HttpShutdownTimeout)
	fmt.Fprintf(&b, "%s: %t\n", PROFILE, c.Profile)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_IMPL, c.ConnectionDatabaseImpl)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_HOST, c.ConnectionDatabaseHost)
	fmt.Fprintf(&b, "%s: %d\n", CONNECTION_DATABASE_PORT, c.ConnectionDatabasePort)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_NAME, c.ConnectionDatabaseName)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_SSL_MODE, c.ConnectionDatabaseSslMode)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_DATABASE_QUERY_TIMEOUT, c.ConnectionDatabaseQueryTimeout)
	fmt.Fprintf(&b, "%s: %s\n", OAUTH_TOKEN_URL, c.OAuthTokenUrl)
	fmt.Fprintf(&b, "%s: %s\n", TOKEN_EXCHANGE_TIMEOUT, c.TokenExchangeTimeout)
	fmt.Fprintf(&b, "%s: %s\n", QBO_API_BASE_URL, c.QboApiBaseUrl)
	fmt.Fprintf(&b, "%s: %s\n", QBO_MINOR_VERSION, c.QboMinorVersion)
	fmt.Fprintf(&b, "%s: %s\n", ENTITY_FETCH_TIMEOUT, c.EntityFetchTimeout)
	fmt.Fprintf(&b, "%s: %s\n", TOKEN_REFRESH_BUFFER, c.TokenRefreshBuffer)
	fmt.Fprintf(&b, "%s: %s\n", SCHEDULER_INTERVAL, c.SchedulerInterval)
	fmt.Fprintf(&b, "%s: %d\n", SCHEDULER_ALERT_THRESHOLD, c.SchedulerAlertThreshold)
	fmt.Fprintf(&b, "%s: %s\n", CONNECTION_CACHE_TTL, c.ConnectionCacheTTL)
	fmt.Fprintf(&b, "%s: %d\n", CONNECTION_CACHE_SIZE, c.ConnectionCacheSize)
	fmt.Fprintf(&b, "%s: %s\n", SYNC_DISPATCH_IMPL, c.SyncDispatchImpl)
	fmt.Fprintf(&b, "%s: %s\n", BROKERS, c.KafkaBrokers)
	fmt.Fprintf(&b, "%s: %s\n", SYNC_TOPIC, c.KafkaSyncTopic)
	fmt.Fprintf(&b, "%s: %s\n", SYNC_GROUP_ID, c.KafkaSyncGroupID)
	fmt.Fprintf(&b, "%s: %d\n", SYNC_BATCH_SIZE, c.KafkaSyncBatchSize)
	fmt.Fprintf(&b, "%s: %d\n", SYNC_BATCH_BYTES, c.KafkaSyncBatchBytes)
	fmt.Fprintf(&b, "%s: %s\n", PAYLOAD_ARCHIVER_IMPL, c.PayloadArchiverImpl)
	fmt.Fprintf(&b, "%s: %s\n", PAYLOAD_ARCHIVE_BUCKET, c.PayloadArchiveBucket)
	fmt.Fprintf(&b, "%s: %s\n", AWS_REGION, c.AwsRegion)

	return b.String()
}

func GetConfig() *Config {
	options := viper.New()

	options.SetDefault(URL_PATH_PREFIX, "api")
	options.SetDefault(URL_APP_NAME, "quickbooks-connector")
	options.SetDefault(HTTP_SHUTDOWN_TIMEOUT, 2)
	options.SetDefault(SERVICE_TO_SERVICE_CREDENTIALS, "")
	options.SetDefault(JWT_SIGNING_KEY, "")
	options.SetDefault(PROFILE, false)

	options.SetDefault(CONNECTION_DATABASE_IMPL, "postgres")
	options.SetDefault(CONNECTION_DATABASE_HOST, "localhost")
	options.SetDefault(CONNECTION_DATABASE_PORT, 5432)
	options.SetDefault(CONNECTION_DATABASE_USER, "insights")
	options.SetDefault(CONNECTION_DATABASE_PASSWORD, "insights")
	options.SetDefault(CONNECTION_DATABASE_NAME, "quickbooks-connector")
	options.SetDefault(CONNECTION_DATABASE_SSL_MODE, "disable")
	options.SetDefault(CONNECTION_DATABASE_SSL_ROOT_CERT, "db_ssl_root_cert.pem")
	options.SetDefault(CONNECTION_DATABASE_QUERY_TIMEOUT, 5)

	options.SetDefault(OAUTH_CLIENT_ID, "")
	options.SetDefault(OAUTH_CLIENT_SECRET, "")
	options.SetDefault(OAUTH_TOKEN_URL, "https://oauth.platform.intuit.com/oauth2/v1/tokens/bearer")
	options.SetDefault(TOKEN_EXCHANGE_TIMEOUT, 30)

	options.SetDefault(QBO_API_BASE_URL, "https://quickbooks.api.intuit.com")
	options.SetDefault(QBO_MINOR_VERSION, "65")
	options.SetDefault(ENTITY_FETCH_TIMEOUT, 30)

	options.SetDefault(TOKEN_REFRESH_BUFFER, 60*60)
	options.SetDefault(SCHEDULER_INTERVAL, 5*60)
	options.SetDefault(SCHEDULER_ALERT_THRESHOLD, 5)

	options.SetDefault(WEBHOOK_VERIFIER_TOKEN, "")

	options.SetDefault(CONNECTION_CACHE_TTL, 30)
	options.SetDefault(CONNECTION_CACHE_SIZE, 100)

	options.SetDefault(SYNC_DISPATCH_IMPL, "inline")
	options.SetDefault(BROKERS, []string{DEFAULT_BROKER_ADDRESS})
	options.SetDefault(SYNC_TOPIC, "quickbooks-connector.sync-jobs")
	options.SetDefault(SYNC_GROUP_ID, "quickbooks-connector-sync-worker")
	options.SetDefault(SYNC_BATCH_SIZE, 100)
	options.SetDefault(SYNC_BATCH_BYTES, 1048576)
	options.SetDefault(KAFKA_USERNAME, "")
	options.SetDefault(KAFKA_PASSWORD, "")
	options.SetDefault(KAFKA_SASL_MECHANISM, "plain")
	options.SetDefault(KAFKA_CA, "")

	options.SetDefault(PAYLOAD_ARCHIVER_IMPL, "noop")
	options.SetDefault(PAYLOAD_ARCHIVE_BUCKET, "quickbooks-connector-webhook-audit")
	options.SetDefault(AWS_REGION, "us-east-1")

	options.SetEnvPrefix(ENV_PREFIX)
	options.AutomaticEnv()

	return &Config{
		UrlPathPrefix:                  options.GetString(URL_PATH_PREFIX),
		UrlAppName:                     options.GetString(URL_APP_NAME),
		UrlBasePath:                    buildUrlBasePath(options.GetString(URL_PATH_PREFIX), options.GetString(URL_APP_NAME)),
		HttpShutdownTimeout:            options.GetDuration(HTTP_SHUTDOWN_TIMEOUT) * time.Second,
		ServiceToServiceCredentials:    options.GetStringMap(SERVICE_TO_SERVICE_CREDENTIALS),
		JwtSigningKey:                  options.GetString(JWT_SIGNING_KEY),
		Profile:                        options.GetBool(PROFILE),
		ConnectionDatabaseImpl:         options.GetString(CONNECTION_DATABASE_IMPL),
		ConnectionDatabaseHost:         options.GetString(CONNECTION_DATABASE_HOST),
		ConnectionDatabasePort:         options.GetInt(CONNECTION_DATABASE_PORT),
		ConnectionDatabaseUser:         options.GetString(CONNECTION_DATABASE_USER),
		ConnectionDatabasePassword:     options.GetString(CONNECTION_DATABASE_PASSWORD),
		ConnectionDatabaseName:         options.GetString(CONNECTION_DATABASE_NAME),
		ConnectionDatabaseSslMode:      options.GetString(CONNECTION_DATABASE_SSL_MODE),
		ConnectionDatabaseSslRootCert:  options.GetString(CONNECTION_DATABASE_SSL_ROOT_CERT),
		ConnectionDatabaseQueryTimeout: options.GetDuration(CONNECTION_DATABASE_QUERY_TIMEOUT) * time.Second,
		OAuthClientId:                  options.GetString(OAUTH_CLIENT_ID),
		OAuthClientSecret:              options.GetString(OAUTH_CLIENT_SECRET),
		OAuthTokenUrl:                  options.GetString(OAUTH_TOKEN_URL),
		TokenExchangeTimeout:           options.GetDuration(TOKEN_EXCHANGE_TIMEOUT) * time.Second,
		QboApiBaseUrl:                  options.GetString(QBO_API_BASE_URL),
		QboMinorVersion:                options.GetString(QBO_MINOR_VERSION),
		EntityFetchTimeout:             options.GetDuration(ENTITY_FETCH_TIMEOUT) * time.Second,
		TokenRefreshBuffer:             options.GetDuration(TOKEN_REFRESH_BUFFER) * time.Second,
		SchedulerInterval:              options.GetDuration(SCHEDULER_INTERVAL) * time.Second,
		SchedulerAlertThreshold:        options.GetInt(SCHEDULER_ALERT_THRESHOLD),
		WebhookVerifierToken:           options.GetString(WEBHOOK_VERIFIER_TOKEN),
		ConnectionCacheTTL:             options.GetDuration(CONNECTION_CACHE_TTL) * time.Second,
		ConnectionCacheSize:            options.GetInt(CONNECTION_CACHE_SIZE),
		SyncDispatchImpl:               options.GetString(SYNC_DISPATCH_IMPL),
		KafkaBrokers:                   options.GetStringSlice(BROKERS),
		KafkaSyncTopic:                 options.GetString(SYNC_TOPIC),
		KafkaSyncGroupID:               options.GetString(SYNC_GROUP_ID),
		KafkaSyncBatchSize:             options.GetInt(SYNC_BATCH_SIZE),
		KafkaSyncBatchBytes:            options.GetInt(SYNC_BATCH_BYTES),
		KafkaUsername:                  options.GetString(KAFKA_USERNAME),
		KafkaPassword:                  options.GetString(KAFKA_PASSWORD),
		KafkaSASLMechanism:             options.GetString(KAFKA_SASL_MECHANISM),
		KafkaCA:                        options.GetString(KAFKA_CA),
		PayloadArchiverImpl:            options.GetString(PAYLOAD_ARCHIVER_IMPL),
		PayloadArchiveBucket:           options.GetString(PAYLOAD_ARCHIVE_BUCKET),
		AwsRegion:                      options.GetString(AWS_REGION),
	}
}

func buildUrlBasePath(pathPrefix string, appName string) string {
	return fmt.Sprintf("/%s/%s/v1", pathPrefix, appName)
}
