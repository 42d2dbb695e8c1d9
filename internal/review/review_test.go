package review_test

import (
	"fmt"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"matchin-backend/internal/models"
	"matchin-backend/internal/review"
)

func deckOf(n int) []models.Flashcard {
	cards := make([]models.Flashcard, n)
	for i := range cards {
		cards[i] = models.Flashcard{Question: fmt.Sprintf("Q%d", i), Answer: fmt.Sprintf("A%d", i)}
	}
	return cards
}

type position struct {
	index   int
	flipped bool
}

func at(s *review.Session) position {
	return position{index: s.Index(), flipped: s.Flipped()}
}

var _ = Describe("Review session", func() {
	var (
		deck    []models.Flashcard
		session *review.Session
	)

	BeforeEach(func() {
		deck = []models.Flashcard{
			{Question: "A", Answer: "1"},
			{Question: "B", Answer: "2"},
			{Question: "C", Answer: "3"},
		}
		var err error
		session, err = review.New(deck)
		Expect(err).NotTo(HaveOccurred())
	})

	It("opens on the first question", func() {
		Expect(at(session)).To(Equal(position{0, false}))
		Expect(session.Current().Question).To(Equal("A"))
	})

	It("walks the three-card scenario with wraparound", func() {
		Expect(session.Flip()).To(Succeed())
		Expect(at(session)).To(Equal(position{0, true}))

		Expect(session.Next()).To(Succeed())
		Expect(at(session)).To(Equal(position{1, false}))

		Expect(session.Previous()).To(Succeed())
		Expect(at(session)).To(Equal(position{0, false}))

		Expect(session.Previous()).To(Succeed())
		Expect(at(session)).To(Equal(position{2, false}))

		Expect(session.Next()).To(Succeed())
		Expect(at(session)).To(Equal(position{0, false}))
	})

	It("never keeps the answer side across navigation", func() {
		Expect(session.Flip()).To(Succeed())
		Expect(session.Next()).To(Succeed())
		Expect(session.Flipped()).To(BeFalse())

		Expect(session.Flip()).To(Succeed())
		Expect(session.Previous()).To(Succeed())
		Expect(session.Flipped()).To(BeFalse())
	})

	It("toggles the flip flag back and forth", func() {
		Expect(session.Flip()).To(Succeed())
		Expect(session.Flip()).To(Succeed())
		Expect(session.Flipped()).To(BeFalse())
	})

	It("does not alias the caller's deck", func() {
		deck[0].Question = "changed"
		Expect(session.Current().Question).To(Equal("A"))
	})

	It("reports progress as (index+1)/N", func() {
		Expect(session.Progress()).To(BeNumerically("~", 1.0/3))
		Expect(session.Next()).To(Succeed())
		Expect(session.Progress()).To(BeNumerically("~", 2.0/3))
		Expect(session.Next()).To(Succeed())
		Expect(session.Progress()).To(Equal(1.0))
		Expect(session.Next()).To(Succeed())
		Expect(session.Progress()).To(BeNumerically("~", 1.0/3))
	})

	It("exposes the current card in its state", func() {
		Expect(session.Next()).To(Succeed())
		Expect(session.Flip()).To(Succeed())
		state := session.State()
		Expect(state.Index).To(Equal(1))
		Expect(state.Flipped).To(BeTrue())
		Expect(state.Size).To(Equal(3))
		Expect(state.Card).To(Equal(models.Flashcard{Question: "B", Answer: "2"}))
	})

	Context("after Close", func() {
		BeforeEach(func() {
			session.Close()
		})

		It("rejects every transition", func() {
			Expect(session.Closed()).To(BeTrue())
			Expect(session.Flip()).To(MatchError(review.ErrClosed))
			Expect(session.Next()).To(MatchError(review.ErrClosed))
			Expect(session.Previous()).To(MatchError(review.ErrClosed))
		})

		It("restarts at the beginning when reopened over the same deck", func() {
			reopened, err := review.New(deck)
			Expect(err).NotTo(HaveOccurred())
			Expect(at(reopened)).To(Equal(position{0, false}))
		})
	})

	Context("with a single card", func() {
		BeforeEach(func() {
			var err error
			session, err = review.New(deckOf(1))
			Expect(err).NotTo(HaveOccurred())
		})

		It("disables navigation", func() {
			Expect(session.CanNavigate()).To(BeFalse())
			Expect(session.Flip()).To(Succeed())
			Expect(session.Next()).To(Succeed())
			Expect(at(session)).To(Equal(position{0, true}))
			Expect(session.Previous()).To(Succeed())
			Expect(at(session)).To(Equal(position{0, true}))
			Expect(session.Progress()).To(Equal(1.0))
		})
	})

	It("refuses an empty deck", func() {
		_, err := review.New(nil)
		Expect(err).To(MatchError(review.ErrEmptyDeck))
	})

	DescribeTable("keeps the index in range for random walks",
		func(n int, seed int64) {
			s, err := review.New(deckOf(n))
			Expect(err).NotTo(HaveOccurred())

			rng := rand.New(rand.NewSource(seed))
			expected := 0
			for i := 0; i < 500; i++ {
				if rng.Intn(3) == 0 {
					Expect(s.Flip()).To(Succeed())
				}
				if rng.Intn(2) == 0 {
					Expect(s.Next()).To(Succeed())
					expected = (expected + 1) % n
				} else {
					Expect(s.Previous()).To(Succeed())
					expected = (expected - 1 + n) % n
				}
				Expect(s.Index()).To(Equal(expected))
				Expect(s.Index()).To(BeNumerically(">=", 0))
				Expect(s.Index()).To(BeNumerically("<", n))
				Expect(s.Flipped()).To(BeFalse())
				Expect(s.Progress()).To(BeNumerically(">", 0))
				Expect(s.Progress()).To(BeNumerically("<=", 1))
			}
		},
		Entry("two cards", 2, int64(1)),
		Entry("five cards", 5, int64(7)),
		Entry("twenty cards", 20, int64(42)),
	)
})
