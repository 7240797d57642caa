package security

import (
	"context"
	"crypto/tls"
	"errors"
	"math"
	"net"
	"net/url"
	"time"

	"github.com/deckshot/deckshot/internal/config"
)

const (
	dialTimeout  = 10 * time.Second
	expiringDays = 30
)

// Certificate states reported in CertStatus.Status.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUntrusted   = "untrusted"
	StatusUnreachable = "unreachable"
)

// CertStatus describes the leaf certificate served by an endpoint.
type CertStatus struct {
	Endpoint string // scheme://host
	Status   string
	Issuer   string
	NotAfter time.Time
	DaysLeft int
	Err      error
}

// Endpoint returns the URL the uploader sends screenshots to, or "" for
// destinations without one.
func Endpoint(u config.Uploader) string {
	switch u.Kind {
	case config.KindS3:
		return u.S3.Endpoint
	case config.KindGDrive:
		return "https://www.googleapis.com"
	case config.KindDropbox:
		return "https://content.dropboxapi.com"
	case config.KindOneDrive:
		return "https://graph.microsoft.com"
	case config.KindDiscord:
		return u.Discord.WebhookURL
	case config.KindImgur:
		return "https://api.imgur.com"
	default:
		return ""
	}
}

// Check dials endpoint and inspects its certificate. It returns nil for
// non-HTTPS endpoints. tlsConf may be nil to use the system roots.
func Check(ctx context.Context, endpoint string, tlsConf *tls.Config) *CertStatus {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	// Only scheme and host: a webhook path carries its token.
	cs := &CertStatus{Endpoint: u.Scheme + "://" + u.Host}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	if tlsConf == nil {
		tlsConf = &tls.Config{}
	} else {
		tlsConf = tlsConf.Clone()
	}
	if tlsConf.ServerName == "" {
		tlsConf.ServerName = u.Hostname()
	}

	dialer := &tls.Dialer{NetDialer: &net.Dialer{}, Config: tlsConf}
	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Err = err
		cs.Status = StatusUnreachable
		if isVerifyError(err) {
			cs.Status = StatusUntrusted
		}
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}

	leaf := peerCerts[0]
	daysLeft := time.Until(leaf.NotAfter).Hours() / 24

	cs.NotAfter = leaf.NotAfter.UTC()
	cs.Issuer = leaf.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(daysLeft))

	switch {
	case daysLeft <= 0:
		cs.Status = StatusExpired
	case daysLeft <= expiringDays:
		cs.Status = StatusExpiring
	default:
		cs.Status = StatusValid
	}
	return cs
}

func isVerifyError(err error) bool {
	var verr *tls.CertificateVerificationError
	return errors.As(err, &verr)
}
