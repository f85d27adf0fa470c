package middleware

import (
    "fmt"
    "net"
    "strings"

    "github.com/labstack/echo/v4"
)

// ClientIP returns the extractor echo uses for c.RealIP(), which keys the
// rate limiters. With no trusted proxies the socket peer address is the
// client and X-Forwarded-For / X-Real-IP are ignored. Otherwise the
// X-Forwarded-For chain is walked from the right and the first hop outside
// the trusted ranges wins.
//
// Entries are CIDRs ("10.0.0.0/8") or bare addresses ("192.0.2.10").
func ClientIP(trusted []string) (echo.IPExtractor, error) {
    if len(trusted) == 0 {
        return echo.ExtractIPDirect(), nil
    }
    opts := []echo.TrustOption{
        echo.TrustLoopback(false),
        echo.TrustLinkLocal(false),
        echo.TrustPrivateNet(false),
    }
    for _, raw := range trusted {
        s := strings.TrimSpace(raw)
        if s == "" {
            continue
        }
        n, err := parseRange(s)
        if err != nil {
            return nil, err
        }
        opts = append(opts, echo.TrustIPRange(n))
    }
    return echo.ExtractIPFromXFFHeader(opts...), nil
}

func parseRange(s string) (*net.IPNet, error) {
    if strings.Contains(s, "/") {
        _, n, err := net.ParseCIDR(s)
        if err != nil {
            return nil, fmt.Errorf("trusted proxy %q: %w", s, err)
        }
        return n, nil
    }
    ip := net.ParseIP(s)
    if ip == nil {
        return nil, fmt.Errorf("trusted proxy %q: not an IP address or CIDR", s)
    }
    bits := 32
    if ip.To4() == nil {
        bits = 128
    } else {
        ip = ip.To4()
    }
    return &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)}, nil
}
