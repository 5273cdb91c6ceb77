package mqtt

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"time"
)

// timestampLayout is the UTC hour stamp embedded in the client id and used
// as the HMAC key for the password.
const timestampLayout = "2006010215"

// Credentials are the CONNECT fields for one device.
type Credentials struct {
	ClientID string
	Username string
	Password string
}

// DeviceCredentials derives the platform CONNECT fields for a device.
//
// The client id is "{deviceID}_0_0_{YYYYMMDDHH}". The password is an
// HMAC-SHA256 of the secret keyed by that hour stamp; the platform reads the
// stamp from the client id and does not require it to be current, so the same
// credentials stay valid across reconnects. With an empty secret (certificate
// auth) the password is left empty.
func DeviceCredentials(deviceID, secret string, now time.Time) Credentials {
	ts := now.UTC().Format(timestampLayout)
	creds := Credentials{
		ClientID: deviceID + "_0_0_" + ts,
		Username: deviceID,
	}
	if secret != "" {
		creds.Password = SignSecret(secret, ts)
	}
	return creds
}

// SignSecret returns hex(HMAC-SHA256(key=timestamp, msg=secret)).
func SignSecret(secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(timestamp))
	mac.Write([]byte(secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// Timestamp formats t the way DeviceCredentials does.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// TLSConfig builds a client TLS configuration.
//
// caFile is the trust anchor for the platform certificate (empty uses the
// system pool). certFile and keyFile, when both set, enable certificate
// authentication of the device.
func TLSConfig(caFile, certFile, keyFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tlsMinVersion}

	if caFile != "" {
		pem, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("reading CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("CA file %s contains no PEM certificates", caFile)
		}
		cfg.RootCAs = pool
	}

	if certFile != "" || keyFile != "" {
		if certFile == "" || keyFile == "" {
			return nil, fmt.Errorf("%w: cert_file and key_file must be set together", ErrInvalidCredentials)
		}
		cert, err := tls.LoadX509KeyPair(certFile, keyFile)
		if err != nil {
			return nil, fmt.Errorf("loading client certificate: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
