package convo

import (
	"fmt"
	"strings"

	"vozlocal/pkg/proto"
)

// User-facing messages. All conversation text is Portuguese; the citizens
// this pipeline serves write in Portuguese.
const (
	msgAudioChoicePrompt = "Quer ouvir em áudio? Responda 1 (sim) ou 2 (não)."
	msgAskQuestion       = "Pode mandar sua pergunta sobre o projeto."
	msgNeedBillFirst     = "Para perguntar sobre um projeto, primeiro escolha a opção 1 no menu para ver um projeto de lei."
	msgOpinionPrompt     = "E aí, qual a sua opinião sobre esse projeto? Responda \"a favor\", \"contra\" ou qualquer outra coisa para pular."
	msgOpinionForAck     = "Registrado: você é a favor. Obrigado por participar!"
	msgOpinionAgainstAck = "Registrado: você é contra. Obrigado por participar!"
	msgBatchDeclineAck   = "Tudo bem! Quando quiser, é só mandar \"menu\"."
	msgNothingFound      = "Não encontrei projetos nessa área no momento. Mande \"menu\" para ver outras opções."
	msgNoBills           = "Não há projetos em tramitação no momento. Tente novamente mais tarde."
	msgProposalThanks    = "Proposta recebida! Ela foi registrada e vai compor o mapa de demandas da cidade. Obrigado!"
)

func welcomeMessage(displayName string) string {
	greeting := "Olá!"
	if displayName != "" {
		greeting = fmt.Sprintf("Olá, %s!", displayName)
	}
	return greeting + ` Eu sou o assistente do Voz.Local 🗣️

1 – Ver um projeto de lei em tramitação
4 – Curadoria de projetos por área

Você também pode mandar uma proposta para a cidade: escreva "proposta: seu texto" ou envie um áudio contando sua ideia.`
}

func areaMenuMessage() string {
	var b strings.Builder
	b.WriteString("Escolha uma área para ver os projetos em tramitação:\n\n")
	areas := proto.CurationAreas()
	for i, theme := range areas {
		fmt.Fprintf(&b, "%d – %s\n", i+1, theme)
	}
	fmt.Fprintf(&b, "%d – Todas as áreas", len(areas)+1)
	return b.String()
}

func batchListMessage(items []proto.CurationItem) string {
	var b strings.Builder
	b.WriteString("Projetos encontrados:\n")
	for i, item := range items {
		fmt.Fprintf(&b, "\n%d. %s", i+1, item.Title)
		if item.Summary != "" {
			fmt.Fprintf(&b, "\n   %s", item.Summary)
		}
	}
	return b.String()
}

// batchNarration builds the spoken-text version of a curated batch.
func batchNarration(items []proto.CurationItem) string {
	var b strings.Builder
	b.WriteString("Aqui estão os projetos encontrados. ")
	for i, item := range items {
		fmt.Fprintf(&b, "Projeto %d: %s. ", i+1, item.Title)
		if item.Summary != "" {
			b.WriteString(item.Summary)
			b.WriteString(" ")
		}
	}
	return strings.TrimSpace(b.String())
}
