package session_test

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/frahmantamala/kakeibo/internal/session"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("CookieCodec", func() {
	var (
		now   time.Time
		codec *session.CookieCodec
	)

	BeforeEach(func() {
		now = time.Now()
		codec = session.NewCookieCodec(session.CookieOptions{
			Name:   "kakeibo_session",
			Secret: "0123456789abcdef0123456789abcdef",
		}).WithClock(func() time.Time { return now })
	})

	It("round trips a session id", func() {
		value, err := codec.Encode("sid-1", now.Add(30*time.Minute))
		Expect(err).NotTo(HaveOccurred())

		id, err := codec.Decode(value)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("sid-1"))
	})

	It("rejects values signed with another secret", func() {
		other := session.NewCookieCodec(session.CookieOptions{Name: "kakeibo_session", Secret: "another-secret-another-secret-xx"})
		value, err := other.Encode("sid-1", now.Add(time.Minute))
		Expect(err).NotTo(HaveOccurred())

		_, err = codec.Decode(value)
		Expect(err).To(MatchError(session.ErrInvalidCookie))
	})

	It("rejects expired and garbage values", func() {
		value, err := codec.Encode("sid-1", now.Add(time.Minute))
		Expect(err).NotTo(HaveOccurred())
		now = now.Add(2 * time.Minute)

		_, err = codec.Decode(value)
		Expect(err).To(MatchError(session.ErrInvalidCookie))

		_, err = codec.Decode("not-a-token")
		Expect(err).To(MatchError(session.ErrInvalidCookie))
	})

	It("writes an http-only strict cookie and reads it back", func() {
		rec := httptest.NewRecorder()
		s := &session.Session{ID: "sid-2", ExpiresAt: now.Add(30 * time.Minute)}
		Expect(codec.Write(rec, s)).To(Succeed())

		cookies := rec.Result().Cookies()
		Expect(cookies).To(HaveLen(1))
		c := cookies[0]
		Expect(c.Name).To(Equal("kakeibo_session"))
		Expect(c.HttpOnly).To(BeTrue())
		Expect(c.SameSite).To(Equal(http.SameSiteStrictMode))
		Expect(c.Path).To(Equal("/"))
		Expect(c.MaxAge).To(BeNumerically("~", 1800, 1))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(c)
		id, err := codec.Read(req)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("sid-2"))
	})

	It("clears the cookie", func() {
		rec := httptest.NewRecorder()
		codec.Clear(rec)
		c := rec.Result().Cookies()[0]
		Expect(c.MaxAge).To(BeNumerically("<", 0))
		Expect(c.Value).To(BeEmpty())
	})

	It("fails to read a request without the cookie", func() {
		_, err := codec.Read(httptest.NewRequest(http.MethodGet, "/", nil))
		Expect(err).To(MatchError(session.ErrInvalidCookie))
	})
})
