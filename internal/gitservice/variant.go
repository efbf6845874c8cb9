package gitservice

import "github.com/vriesdemichael/git-service-cli/internal/config"

type Kind string

const KindGitLab Kind = "gitlab"

// Variant is what differs between hosting modes of one provider.
type Variant struct {
	Kind Kind
	// Name is the hosting mode, e.g. self_hosted.
	Name            string
	Section         string
	DefaultHostname string
	TokenName       string
	TokenMandatory  bool
}

func (variant Variant) String() string {
	return string(variant.Kind) + "." + variant.Name
}

var (
	SelfHostedGitLab = Variant{
		Kind:           KindGitLab,
		Name:           "self_hosted",
		Section:        "git_service.gitlab.self_hosted",
		TokenName:      config.EnvSelfHostedGitLabToken,
		TokenMandatory: true,
	}

	PubliclyHostedGitLab = Variant{
		Kind:            KindGitLab,
		Name:            "publicly_hosted",
		Section:         "git_service.gitlab.publicly_hosted",
		DefaultHostname: "gitlab.com",
		TokenName:       config.EnvGitLabToken,
	}
)

// Variants lists every supported variant. Self-hosted comes first so that a
// self-hosted instance configured on a public hostname takes precedence.
func Variants() []Variant {
	return []Variant{SelfHostedGitLab, PubliclyHostedGitLab}
}
