package host

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrNoRepository = errors.New("repository requires a GITHUB_REPOSITORY environment variable like 'owner/repo'")

// RunContext describes the workflow run that triggered the task.
type RunContext struct {
	EventName string
	SHA       string
	Ref       string
	Workflow  string
	Action    string
	Actor     string
	Job       string
	RunNumber int64
	RunID     int64
	// Payload is the decoded webhook event, empty when the runner gave none.
	Payload map[string]interface{}

	repository string
}

type Repository struct {
	Owner string
	Repo  string
}

func (r Repository) String() string {
	return r.Owner + "/" + r.Repo
}

// LoadContext reads the run context from the environment. A nil lookup uses
// os.LookupEnv.
func LoadContext(lookup func(string) (string, bool)) (*RunContext, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return v
	}

	rc := &RunContext{
		EventName:  get("GITHUB_EVENT_NAME"),
		SHA:        get("GITHUB_SHA"),
		Ref:        get("GITHUB_REF"),
		Workflow:   get("GITHUB_WORKFLOW"),
		Action:     get("GITHUB_ACTION"),
		Actor:      get("GITHUB_ACTOR"),
		Job:        get("GITHUB_JOB"),
		Payload:    map[string]interface{}{},
		repository: get("GITHUB_REPOSITORY"),
	}

	var err error
	if rc.RunNumber, err = parseInt(get("GITHUB_RUN_NUMBER")); err != nil {
		return nil, errors.Wrap(err, "parse GITHUB_RUN_NUMBER")
	}
	if rc.RunID, err = parseInt(get("GITHUB_RUN_ID")); err != nil {
		return nil, errors.Wrap(err, "parse GITHUB_RUN_ID")
	}

	if path := get("GITHUB_EVENT_PATH"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "read event payload %s", path)
		}
		if err == nil {
			if err := json.Unmarshal(data, &rc.Payload); err != nil {
				return nil, errors.Wrapf(err, "decode event payload %s", path)
			}
		}
	}
	return rc, nil
}

// Repo returns the repository from GITHUB_REPOSITORY, falling back to the
// event payload.
func (rc *RunContext) Repo() (Repository, error) {
	if rc.repository != "" {
		parts := strings.SplitN(rc.repository, "/", 2)
		if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
			return Repository{Owner: parts[0], Repo: parts[1]}, nil
		}
	}

	if repo, ok := rc.Payload["repository"].(map[string]interface{}); ok {
		name, _ := repo["name"].(string)
		if owner, ok := repo["owner"].(map[string]interface{}); ok {
			login, _ := owner["login"].(string)
			if login != "" && name != "" {
				return Repository{Owner: login, Repo: name}, nil
			}
		}
	}
	return Repository{}, ErrNoRepository
}

func parseInt(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
