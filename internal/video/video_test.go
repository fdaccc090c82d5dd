package video_test

import (
	"context"
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lighthouse.app/cityintel/common/llm"
	"lighthouse.app/cityintel/internal/model"
	"lighthouse.app/cityintel/internal/video"
)

var card = model.IssueCard{ID: 4, Title: "Muni delays on Geary", Summary: "Bus bunching doubled"}

var _ = Describe("ScriptWriter", func() {
	var (
		ctx    context.Context
		client *mockLLMClient
		writer *video.ScriptWriter
	)

	BeforeEach(func() {
		ctx = context.Background()
		client = &mockLLMClient{}
		writer = video.NewScriptWriter(client)
	})

	DescribeTable("parses model output",
		func(content string, expected []string) {
			client.invokeFn = func(context.Context, llm.Request) (*llm.Response, error) {
				return &llm.Response{Content: content}, nil
			}
			Expect(writer.Script(ctx, card)).To(Equal(expected))
		},
		Entry("wrapped object", `{"scenes":["one","two","three"]}`, []string{"one", "two", "three"}),
		Entry("bare array in a code fence", "```json\n[\"one\",\"two\",\"three\"]\n```", []string{"one", "two", "three"}),
		Entry("extra scenes are dropped", `["1","2","3","4"]`, []string{"1", "2", "3"}),
		Entry("blank scenes are skipped", `["1"," ","2"]`, []string{"1", "2"}),
	)

	It("puts the card in the prompt", func() {
		var req llm.Request
		client.invokeFn = func(_ context.Context, r llm.Request) (*llm.Response, error) {
			req = r
			return &llm.Response{Content: `["x"]`}, nil
		}
		writer.Script(ctx, card)

		Expect(req.UserPrompt).To(ContainSubstring("Muni delays on Geary"))
		Expect(req.UserPrompt).To(ContainSubstring("Bus bunching doubled"))
		Expect(req.Structured).To(BeTrue())
	})

	It("falls back to fixed scenes on failure", func() {
		client.invokeFn = func(context.Context, llm.Request) (*llm.Response, error) {
			return nil, errors.New("quota exceeded")
		}
		scenes := writer.Script(ctx, card)

		Expect(scenes).To(Equal(video.FallbackScenes(card.Title)))
		Expect(scenes).To(HaveLen(video.SceneCount))
		Expect(scenes[0]).To(ContainSubstring("Muni delays on Geary"))
	})

	It("falls back when the response has no scenes", func() {
		client.invokeFn = func(context.Context, llm.Request) (*llm.Response, error) {
			return &llm.Response{Content: `{"scenes":[]}`}, nil
		}
		Expect(writer.Script(ctx, card)).To(Equal(video.FallbackScenes(card.Title)))
	})
})

var _ = Describe("Enhancer", func() {
	var (
		ctx      context.Context
		renderer *mockRenderer
		frames   *mockFrameStore
		sink     *recordingSink
		enhancer *video.Enhancer
	)

	BeforeEach(func() {
		ctx = context.Background()
		renderer = &mockRenderer{}
		frames = &mockFrameStore{}
		sink = &recordingSink{}
		enhancer = video.NewEnhancer(video.NewScriptWriter(&mockLLMClient{}), renderer, frames, sink)
	})

	It("refuses to start before cards exist", func() {
		_, err := enhancer.Start(ctx, 1, model.StageConsolidate, []model.IssueCard{card})
		Expect(err).To(MatchError(video.ErrNotReady))

		_, err = enhancer.Start(ctx, 1, model.StageMarathon, nil)
		Expect(err).To(MatchError(video.ErrNoCards))
	})

	It("renders and stores one frame per scene for the top card", func() {
		job, err := enhancer.Start(ctx, 7, model.StageMarathon, []model.IssueCard{card, {ID: 9, Title: "other"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(job.ID).NotTo(BeEmpty())
		Expect(job.CardID).To(Equal(4))

		enhancer.Wait()

		done, err := enhancer.Get(job.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(done.Status).To(Equal(video.JobDone))
		Expect(done.Scenes).To(HaveLen(3))
		Expect(done.Scenes[0].ObjectKey).To(Equal(job.ID + "/scene-1.png"))
		Expect(frames.objects).To(HaveLen(3))
		Expect(frames.objects).To(HaveKeyWithValue(job.ID+"/scene-3.png", "image/png"))
		Expect(renderer.prompts).To(Equal([]string{"a", "b", "c"}))

		msgs := sink.messages()
		Expect(msgs[0]).To(Equal("Starting Multi-Part Video Synthesis..."))
		Expect(msgs[len(msgs)-1]).To(Equal("Full Video Report Synthesis Complete."))
		for _, e := range sink.entries {
			Expect(e.Source).To(Equal("Video Agent"))
		}
	})

	It("marks the job failed when a frame cannot be rendered", func() {
		renderer.generateFn = func(_ context.Context, prompt string) ([]byte, error) {
			if prompt == "b" {
				return nil, errors.New("content policy")
			}
			return []byte("png"), nil
		}
		job, err := enhancer.Start(ctx, 7, model.StageCards, []model.IssueCard{card})
		Expect(err).NotTo(HaveOccurred())
		enhancer.Wait()

		failed, err := enhancer.Get(job.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(failed.Status).To(Equal(video.JobFailed))
		Expect(failed.Error).To(ContainSubstring("content policy"))
		Expect(failed.Scenes).To(HaveLen(1))

		msgs := sink.messages()
		Expect(strings.HasPrefix(msgs[len(msgs)-1], "Video generation failed:")).To(BeTrue())
	})

	It("marks the job failed when storage is unavailable", func() {
		frames.putFn = func(context.Context, string, []byte, string) error {
			return errors.New("bucket missing")
		}
		job, err := enhancer.Start(ctx, 7, model.StageCards, []model.IssueCard{card})
		Expect(err).NotTo(HaveOccurred())
		enhancer.Wait()

		failed, err := enhancer.Get(job.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(failed.Status).To(Equal(video.JobFailed))
		Expect(failed.Scenes).To(BeEmpty())
	})

	It("evicts the oldest finished jobs past the retention limit", func() {
		first, err := enhancer.Start(ctx, 1, model.StageMarathon, []model.IssueCard{card})
		Expect(err).NotTo(HaveOccurred())
		enhancer.Wait()

		var last video.Job
		for i := 0; i <= video.MaxFinishedJobs; i++ {
			last, err = enhancer.Start(ctx, int64(i+2), model.StageMarathon, []model.IssueCard{card})
			Expect(err).NotTo(HaveOccurred())
			enhancer.Wait()
		}

		_, err = enhancer.Get(first.ID)
		Expect(err).To(MatchError(video.ErrJobNotFound))

		kept, err := enhancer.Get(last.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(kept.Status).To(Equal(video.JobDone))
	})

	It("reports unknown jobs", func() {
		_, err := enhancer.Get("missing")
		Expect(err).To(MatchError(video.ErrJobNotFound))
	})
})
